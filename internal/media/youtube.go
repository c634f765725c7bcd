package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const youtubeOEmbedURL = "https://www.youtube.com/oembed"

// YouTubeProvider resolves youtube.com and youtu.be URLs.
type YouTubeProvider struct {
	client *http.Client
}

// NewYouTubeProvider creates the provider with the given HTTP client.
func NewYouTubeProvider(client *http.Client) *YouTubeProvider {
	return &YouTubeProvider{client: client}
}

func (p *YouTubeProvider) Name() string {
	return "youtube"
}

func (p *YouTubeProvider) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "youtube.com" || host == "youtu.be" || host == "m.youtube.com"
}

// ExtractID handles watch?v=, youtu.be/, embed/ and shorts/ URL shapes.
func (p *YouTubeProvider) ExtractID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "youtu.be" {
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return "", fmt.Errorf("no video id in %s", rawURL)
		}
		return id, nil
	}

	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}

	for _, prefix := range []string{"/embed/", "/shorts/"} {
		if strings.HasPrefix(u.Path, prefix) {
			id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
			if id != "" {
				return id, nil
			}
		}
	}

	return "", fmt.Errorf("no video id in %s", rawURL)
}

func (p *YouTubeProvider) FetchMetadata(ctx context.Context, id string) (*Metadata, error) {
	watchURL := "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
	endpoint := youtubeOEmbedURL + "?format=json&url=" + url.QueryEscape(watchURL)

	var oembed struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := fetchJSON(ctx, p.client, endpoint, &oembed); err != nil {
		return nil, fmt.Errorf("youtube oembed: %w", err)
	}

	return &Metadata{
		Title:        oembed.Title,
		ThumbnailURL: oembed.ThumbnailURL,
		EmbedURL:     "https://www.youtube.com/embed/" + id,
	}, nil
}

func fetchJSON(ctx context.Context, client *http.Client, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
