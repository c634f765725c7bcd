// Package media resolves platform-specific video metadata through a
// capability-checked provider registry. Each provider knows how to recognize
// its URLs, extract the platform-native id, and fetch display metadata.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoProvider is returned when no registered provider handles a URL.
var ErrNoProvider = errors.New("no provider for url")

// Metadata is the platform metadata a provider can resolve for a video.
type Metadata struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	EmbedURL     string `json:"embed_url"`
}

// Provider resolves platform metadata for one video platform.
type Provider interface {
	// Name is the platform identifier stored on content items.
	Name() string

	// CanHandle reports whether the provider recognizes the source URL.
	CanHandle(url string) bool

	// ExtractID parses the platform-native video id out of the URL.
	ExtractID(url string) (string, error)

	// FetchMetadata resolves display metadata for a video id.
	FetchMetadata(ctx context.Context, id string) (*Metadata, error)
}

const fetchTimeout = 5 * time.Second

// Registry holds the registered providers in selection order.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry with the default providers.
func NewRegistry() *Registry {
	client := &http.Client{Timeout: fetchTimeout}
	return &Registry{
		providers: []Provider{
			NewYouTubeProvider(client),
			NewVimeoProvider(client),
		},
	}
}

// Register appends a provider. Later registrations lose to earlier ones for
// overlapping URLs.
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, p)
}

// Resolve returns the first provider whose CanHandle matches the URL.
func (r *Registry) Resolve(url string) (Provider, error) {
	for _, p := range r.providers {
		if p.CanHandle(url) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProvider, url)
}
