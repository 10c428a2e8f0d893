package bnet

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("service")

// ConnectionService methods
const (
	MethodConnect           uint32 = 1
	MethodBind              uint32 = 2
	MethodEcho              uint32 = 3
	MethodForceDisconnect   uint32 = 4
	MethodKeepAlive         uint32 = 5
	MethodEncrypt           uint32 = 6
	MethodRequestDisconnect uint32 = 7
)

var connectionMethods = []service.Method{
	{ID: MethodConnect, Name: "Connect"},
	{ID: MethodBind, Name: "Bind"},
	{ID: MethodEcho, Name: "Echo"},
	{ID: MethodForceDisconnect, Name: "ForceDisconnect"},
	{ID: MethodKeepAlive, Name: "KeepAlive"},
	{ID: MethodEncrypt, Name: "Encrypt"},
	{ID: MethodRequestDisconnect, Name: "RequestDisconnect"},
}

// serverProcess identifies this process in every ConnectResponse
var serverProcess = ProcessID{
	Label: uint32(os.Getpid()),
	Epoch: uint32(time.Now().Unix()),
}

// ServerProcess returns the process id sent to connecting clients
func ServerProcess() ProcessID {
	return serverProcess
}

// ConnectionService manipulates the connection between client and server
type ConnectionService struct{}

// NewConnectionService creates the service
func NewConnectionService() *ConnectionService {
	return &ConnectionService{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see service.Service)
// --------------------------------------------------------------------------

func (s *ConnectionService) Name() string              { return ConnectionServiceName }
func (s *ConnectionService) ID() uint32                { return ConnectionServiceID }
func (s *ConnectionService) Hash() uint32              { return service.HashName(ConnectionServiceName) }
func (s *ConnectionService) Methods() []service.Method { return connectionMethods }

func (s *ConnectionService) Accept(h codec.Header) (service.Method, error) {
	return service.DefaultAccept(s, h)
}

func (s *ConnectionService) Handle(_ context.Context, method service.Method, shared *service.ClientShared, req transport.Request) (service.Outcome, error) {
	switch method.ID {
	case MethodConnect:
		// a second connect on an active session is a protocol violation
		return service.Outcome{}, &service.InvalidRequestError{
			Service: ConnectionServiceName,
			Method:  method.Name,
			Reason:  "connect is only valid during the handshake",
		}

	case MethodEcho:
		return service.Immediate(service.Reply(transport.BuildResponse(req, req.Body()))), nil

	case MethodKeepAlive:
		return service.Immediate(service.Stop()), nil

	case MethodRequestDisconnect:
		shared.Logger.Infof("%s requested disconnect", shared)
		return service.Immediate(service.Stop()), nil

	default:
		return service.Outcome{}, fmt.Errorf("%s.%s: %w", ConnectionServiceName, method.Name, service.ErrNotImplemented)
	}
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// ConnectDirect handles the connect request of a handshaking connection and
// returns the response to send back
func ConnectDirect(req transport.Request) (transport.Response, error) {
	h := req.Header()
	methodID, ok := h.Method()
	if !ok {
		return transport.Response{}, &service.UnknownRequestError{
			Service:   ConnectionServiceName,
			ServiceID: h.ServiceID,
			Reason:    service.ErrWrongService,
		}
	}
	if h.ServiceID != ConnectionServiceID || methodID != MethodConnect {
		return transport.Response{}, &service.InvalidRequestError{
			Service: ConnectionServiceName,
			Method:  "Connect",
			Reason:  fmt.Sprintf("expected the connect method, got service %d method %d", h.ServiceID, methodID),
		}
	}

	var connect ConnectRequest
	if err := connect.Unmarshal(req.Body()); err != nil {
		return transport.Response{}, &service.PayloadError{Message: "ConnectRequest", Err: err}
	}

	resp, err := Connect(&connect, time.Now())
	if err != nil {
		return transport.Response{}, err
	}

	return transport.BuildResponse(req, resp.Marshal()), nil
}

// Connect validates the bindings of a connect request and builds the response
func Connect(req *ConnectRequest, now time.Time) (*ConnectResponse, error) {
	resp := &ConnectResponse{
		ServerID:       serverProcess,
		ClientID:       req.ClientID,
		ServerTime:     uint64(now.UnixNano()),
		UseBindlessRPC: req.UseBindlessRPC,
	}

	if req.BindRequest == nil {
		return resp, nil
	}

	bindResp, err := Bind(req.BindRequest)
	if err != nil {
		return nil, err
	}

	var success uint32
	resp.BindResult = &success
	resp.BindResponse = bindResp
	return resp, nil
}

// Bind checks the services the client exports against Imported and resolves
// the services it imports against Exported
func Bind(req *BindRequest) (*BindResponse, error) {
	for _, bound := range req.ExportedService {
		binding, ok := Imported.ByHash(bound.Hash)
		if !ok {
			return nil, &service.InvalidRequestError{
				Service: ConnectionServiceName,
				Method:  "Connect",
				Reason:  fmt.Sprintf("unknown exported service hash %d", bound.Hash),
			}
		}
		if binding.ID != bound.ID {
			return nil, &service.InvalidRequestError{
				Service: ConnectionServiceName,
				Method:  "Connect",
				Reason:  fmt.Sprintf("service %s bound to id %d, must be %d", binding.Name, bound.ID, binding.ID),
			}
		}
	}

	resp := &BindResponse{ImportedServiceID: make([]uint32, 0, len(req.ImportedServiceHash))}
	for _, hash := range req.ImportedServiceHash {
		var id uint32
		if binding, ok := Exported.ByHash(hash); ok {
			id = binding.ID
		} else {
			Logger.Warningf("client requested unknown service hash %d, bound to 0", hash)
		}
		resp.ImportedServiceID = append(resp.ImportedServiceID, id)
	}
	return resp, nil
}
