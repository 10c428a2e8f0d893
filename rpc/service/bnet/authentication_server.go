package bnet

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/transport"
)

// AuthenticationServer methods
const (
	MethodLogon                       uint32 = 1
	MethodModuleNotify                uint32 = 2
	MethodModuleMessage               uint32 = 3
	MethodSelectGameAccountDeprecated uint32 = 4
	MethodGenerateSSOToken            uint32 = 5
	MethodSelectGameAccount           uint32 = 6
	MethodVerifyWebCredentials        uint32 = 7
)

var authenticationMethods = []service.Method{
	{ID: MethodLogon, Name: "Logon"},
	{ID: MethodModuleNotify, Name: "ModuleNotify"},
	{ID: MethodModuleMessage, Name: "ModuleMessage"},
	{ID: MethodSelectGameAccountDeprecated, Name: "SelectGameAccountDeprecated"},
	{ID: MethodGenerateSSOToken, Name: "GenerateSSOToken"},
	{ID: MethodSelectGameAccount, Name: "SelectGameAccount"},
	{ID: MethodVerifyWebCredentials, Name: "VerifyWebCredentials"},
}

// AuthenticationServer handles account logon
type AuthenticationServer struct{}

// NewAuthenticationServer creates the service
func NewAuthenticationServer() *AuthenticationServer {
	return &AuthenticationServer{}
}

func (s *AuthenticationServer) Name() string              { return AuthenticationServerName }
func (s *AuthenticationServer) ID() uint32                { return AuthenticationServerID }
func (s *AuthenticationServer) Hash() uint32              { return service.HashName(AuthenticationServerName) }
func (s *AuthenticationServer) Methods() []service.Method { return authenticationMethods }

func (s *AuthenticationServer) Accept(h codec.Header) (service.Method, error) {
	return service.DefaultAccept(s, h)
}

func (s *AuthenticationServer) Handle(ctx context.Context, method service.Method, shared *service.ClientShared, req transport.Request) (service.Outcome, error) {
	switch method.ID {
	case MethodLogon:
		return service.Defer(service.Go(ctx, func(ctx context.Context) (service.Decision, error) {
			return s.logon(shared, req)
		})), nil
	default:
		return service.Outcome{}, fmt.Errorf("%s.%s: %w", AuthenticationServerName, method.Name, service.ErrNotImplemented)
	}
}

// logon decodes the request and acknowledges it with an empty response
func (s *AuthenticationServer) logon(shared *service.ClientShared, req transport.Request) (service.Decision, error) {
	var logon LogonRequest
	if err := logon.Unmarshal(req.Body()); err != nil {
		return service.Decision{}, &service.PayloadError{Message: "LogonRequest", Err: err}
	}

	shared.Logger.Debugf("%s logon request: program=%q platform=%q locale=%q email=%q version=%q",
		shared, logon.Program, logon.Platform, logon.Locale, logon.Email, logon.Version)

	return service.Reply(transport.BuildEmptyResponse(req)), nil
}
