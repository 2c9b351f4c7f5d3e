// Package daemon coordinates the scheduler lifecycle and enforces
// single-instance execution via a file lock. It is the surface the IPC
// server exposes to the control CLI.
package daemon
