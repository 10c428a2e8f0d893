// Package transport defines the message envelope of the BNet protocol and the
// interfaces of the network layer below it.
//
// Key Components:
//
//   - Request / Response: tags over a codec.Frame. Classification is total and
//     mutually exclusive, a frame is a Response iff it addresses the reserved
//     response service (254) with an absent or zero method id, every other
//     frame is a Request.
//
//   - BuildResponse / BuildEmptyResponse: construct the Response for a Request,
//     copying the correlation token.
//
//   - Internal: same process forwarding envelope. A service that wants another
//     service to handle a request returns a Forward decision carrying an
//     Internal, the router readdresses the request and routes it again.
//
//   - IRPCServerTransport / IRPCClientTransport: listener and dialer
//     abstractions implemented in the tcp and unix packages on top of base.
package transport
