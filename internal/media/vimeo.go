package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const vimeoOEmbedURL = "https://vimeo.com/api/oembed.json"

// VimeoProvider resolves vimeo.com URLs.
type VimeoProvider struct {
	client *http.Client
}

// NewVimeoProvider creates the provider with the given HTTP client.
func NewVimeoProvider(client *http.Client) *VimeoProvider {
	return &VimeoProvider{client: client}
}

func (p *VimeoProvider) Name() string {
	return "vimeo"
}

func (p *VimeoProvider) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "vimeo.com" || host == "player.vimeo.com"
}

// ExtractID takes the first numeric path segment as the video id.
func (p *VimeoProvider) ExtractID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	for _, segment := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if segment != "" && isDigits(segment) {
			return segment, nil
		}
	}
	return "", fmt.Errorf("no video id in %s", rawURL)
}

func (p *VimeoProvider) FetchMetadata(ctx context.Context, id string) (*Metadata, error) {
	videoURL := "https://vimeo.com/" + id
	endpoint := vimeoOEmbedURL + "?url=" + url.QueryEscape(videoURL)

	var oembed struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := fetchJSON(ctx, p.client, endpoint, &oembed); err != nil {
		return nil, fmt.Errorf("vimeo oembed: %w", err)
	}

	return &Metadata{
		Title:        oembed.Title,
		ThumbnailURL: oembed.ThumbnailURL,
		EmbedURL:     "https://player.vimeo.com/video/" + id,
	}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
