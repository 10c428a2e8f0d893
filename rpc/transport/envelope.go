package transport

import (
	"github.com/ValentinKolb/firestarter/rpc/codec"
)

const (
	// ResponseServiceID is the reserved service id every response is addressed to
	ResponseServiceID uint32 = 254
	// ResponseMethodID is the method id of a response
	ResponseMethodID uint32 = 0
)

// NoData is the canonical empty payload
var NoData = []byte{}

// Envelope is implemented by Request and Response
type Envelope interface {
	Frame() codec.Frame
	Header() codec.Header
}

// Kind is the classification of a frame
type Kind uint8

const (
	KindRequest Kind = iota
	KindResponse
)

func (k Kind) String() string {
	if k == KindResponse {
		return "response"
	}
	return "request"
}

// Classify returns the kind of f, it never fails
func Classify(f codec.Frame) Kind {
	if f.Header.ServiceID != ResponseServiceID {
		return KindRequest
	}
	if method, ok := f.Header.Method(); ok && method != ResponseMethodID {
		return KindRequest
	}
	return KindResponse
}

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

// Request is a frame addressed to a service method
type Request struct {
	frame codec.Frame
}

// NewRequest builds a request frame, the size is taken from the body
func NewRequest(h codec.Header, body []byte) Request {
	return Request{frame: codec.NewFrame(h, body)}
}

// AsRequest tags f as a Request if it classifies as one
func AsRequest(f codec.Frame) (Request, bool) {
	if Classify(f) != KindRequest {
		return Request{}, false
	}
	return Request{frame: f}, true
}

func (r Request) Frame() codec.Frame   { return r.frame }
func (r Request) Header() codec.Header { return r.frame.Header }
func (r Request) Body() []byte         { return r.frame.Body }
func (r Request) Token() uint32        { return r.frame.Header.Token }

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// Response is a frame addressed to the response service
type Response struct {
	frame codec.Frame
}

// AsResponse tags f as a Response if it classifies as one
func AsResponse(f codec.Frame) (Response, bool) {
	if Classify(f) != KindResponse {
		return Response{}, false
	}
	return Response{frame: f}, true
}

func (r Response) Frame() codec.Frame   { return r.frame }
func (r Response) Header() codec.Header { return r.frame.Header }
func (r Response) Body() []byte         { return r.frame.Body }
func (r Response) Token() uint32        { return r.frame.Header.Token }

// BuildResponse builds the response to req carrying body
func BuildResponse(req Request, body []byte) Response {
	method := ResponseMethodID
	h := codec.Header{
		ServiceID: ResponseServiceID,
		MethodID:  &method,
		Token:     req.Token(),
	}
	return Response{frame: codec.NewFrame(h, body)}
}

// BuildEmptyResponse builds the response to req with an empty payload
func BuildEmptyResponse(req Request) Response {
	return BuildResponse(req, NoData)
}

// --------------------------------------------------------------------------
// Internal forwarding
// --------------------------------------------------------------------------

// Internal carries a request that should be handled by another local service
type Internal struct {
	ServiceID uint32
	MethodID  uint32
	Request   Request
}

// Readdress returns the carried request addressed to the new service and
// method. Token, object id and body are preserved.
func (i Internal) Readdress() Request {
	h := i.Request.Header()
	h.ServiceID = i.ServiceID
	method := i.MethodID
	h.MethodID = &method
	return NewRequest(h, i.Request.Body())
}
