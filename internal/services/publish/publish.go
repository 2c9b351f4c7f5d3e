// Package publish posts finished video artifacts to the target platforms
// and generates captions. Publishing is best-effort: a failure here leaves
// the artifact intact and marks the run publish_failed rather than failing
// the pipeline.
package publish

import (
	"context"
	"fmt"
	"strings"

	"loom/internal/services"
	"loom/internal/store"
)

// Credentials carries the opaque per-channel publishing identity.
type Credentials struct {
	AccessToken    string
	PlatformUserID string
}

// Publisher posts an artifact to one platform and returns the remote URL or
// identifier of the created post.
type Publisher interface {
	Publish(ctx context.Context, artifactURL string, creds Credentials, caption string) (string, error)
}

// Registry maps platform names to publishers.
type Registry struct {
	publishers map[string]Publisher
}

// NewRegistry builds a registry over the given platform publishers.
func NewRegistry(publishers map[string]Publisher) *Registry {
	if publishers == nil {
		publishers = map[string]Publisher{}
	}
	return &Registry{publishers: publishers}
}

// For returns the publisher for a channel's platform.
func (r *Registry) For(channel *store.Channel) (Publisher, error) {
	platform := strings.ToLower(strings.TrimSpace(channel.Platform))
	publisher, ok := r.publishers[platform]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "lookup",
			fmt.Sprintf("no publisher for platform %q", channel.Platform), nil)
	}
	return publisher, nil
}
