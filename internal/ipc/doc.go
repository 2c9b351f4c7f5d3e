// Package ipc provides JSON-RPC control of the daemon over a Unix domain
// socket. The CLI is the only intended client; requests and responses are
// small typed structs so the wire surface stays stable.
package ipc
