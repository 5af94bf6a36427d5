// Package catalog provides the Spotify-backed song catalog adapter.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/SabaVan/kame-sub000/internal/domain/song"
)

// ErrSongNotFound is returned when the catalog has no entry for the ID.
var ErrSongNotFound = errors.New("song not found in catalog")

// Client is a Spotify-backed catalog client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents catalog client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a catalog client authenticated with a refresh token.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	// HTTP client with auto-refresh
	httpClient := auth.Client(ctx, token)
	client := spotify.New(httpClient)

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// LookupSong resolves a song by track ID, URL or URI.
func (c *Client) LookupSong(ctx context.Context, songID string) (song.Song, error) {
	id := extractTrackID(songID)

	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return song.Song{}, errors.Wrapf(ErrSongNotFound, "track %s", id)
		}
		return song.Song{}, errors.Wrap(err, "failed to get track")
	}

	return c.convertTrack(result), nil
}

// convertTrack maps a Spotify track onto the Song entity.
func (c *Client) convertTrack(t *spotify.FullTrack) song.Song {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	return song.Song{
		ID:       string(t.ID),
		Title:    t.Name,
		Artists:  artists,
		Album:    t.Album.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		URL:      t.ExternalURLs["spotify"],
	}
}

// retry runs fn with bounded retries on transient failures.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}

	// URL format: https://open.spotify.com/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already a track ID
	return input
}
