// Package ipc exposes daemon control as JSON-RPC over a Unix domain
// socket. The CLI is the only intended client; the wire types here are
// flat JSON views of the queue and history models so the two processes
// never share in-memory types.
package ipc
