// Package unix implements the Unix domain socket transport of the BNet server
// and client, mostly used for local tooling and tests. A stale socket file at
// the endpoint is removed before listening.
package unix
