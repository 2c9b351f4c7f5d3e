// Package notifications delivers production events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set, so
// pipeline code never guards notification sends. Per-category toggles let
// operators silence production chatter while keeping budget and error
// alerts.
package notifications
