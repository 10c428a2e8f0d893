// Package router implements the per connection routing engine of an active
// BNet session.
//
// The Engine owns the connection after the handshake. Each turn it
//
//  1. applies the decisions of completed pending operations, freeing their
//     slots
//  2. admits new frames from the reader while a pending slot is free, routes
//     them through the request or response registry and applies the outcome
//  3. flushes the outbound queue into the writer until the writer rejects a
//     frame, the rejected frame stays at the head of the queue
//
// and then blocks until an operation completes, a frame arrives while a slot
// is free, the writer has room while frames are queued, or an error occurs.
//
// Concurrency Model:
//
//	The engine state (slots, outbound queue) is only touched by the goroutine
//	running Run. A reader goroutine decodes frames and hands them over an
//	unbuffered channel, so no frame is taken from the stream while every slot
//	is occupied. A writer goroutine drains a bounded channel into the stream,
//	a full channel is backpressure. Every pending operation is watched by a
//	goroutine that reports its completion to the engine.
//
// Forwarding:
//
//	A Forward decision is readdressed and routed again through the request
//	registry. The result is applied like any other outcome, so a forwarded
//	request may itself become pending. Nested forwards are bounded by
//	MaxForwardDepth.
//
// Error Handling:
//
//	Codec errors, routing errors (ErrNoRoute), service errors and writer
//	errors are fatal and returned by Run. A clean end of stream ends Run
//	with a nil error.
package router
