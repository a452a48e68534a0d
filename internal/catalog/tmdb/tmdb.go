// Package tmdb is a catalog.Catalog backed by The Movie Database v3 API.
//
// AUTHENTICATION:
// TMDB accepts either a v4 "API Read Access Token" sent as a bearer token, or
// a v3 API key sent as the api_key query parameter. With a token, requests go
// through an oauth2 static token source, which sets the Authorization header
// on every request.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/catalog"
	"github.com/sakif/movieshelf/internal/model"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultLanguage = "en-US"
	ImageBaseURL    = "https://image.tmdb.org/t/p"
)

var _ catalog.Catalog = (*Client)(nil)

// Config holds the TMDB settings. Set AccessToken or APIKey.
type Config struct {
	BaseURL     string
	AccessToken string
	APIKey      string
	Language    string
	Timeout     time.Duration
}

// Client talks to TMDB over HTTP.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
}

// New builds a Client. base may be nil, in which case a client with
// cfg.Timeout is created. When cfg.AccessToken is set the client is wrapped
// with oauth2 bearer authentication.
func New(cfg Config, base *http.Client) (*Client, error) {
	if cfg.AccessToken == "" && cfg.APIKey == "" {
		return nil, errors.New("tmdb: an access token or API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if base == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		base = &http.Client{Timeout: timeout}
	}

	httpClient := base
	if cfg.AccessToken != "" {
		// oauth2.NewClient picks up the base client from the context.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		}))
		httpClient.Timeout = base.Timeout
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		http:     httpClient,
	}, nil
}

// GetMovieDetails fetches /movie/{id}.
func (c *Client) GetMovieDetails(ctx context.Context, id string) (*model.MovieDetails, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "movie id is required")
	}

	q := url.Values{}
	q.Set("language", c.language)
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u := fmt.Sprintf("%s/movie/%s?%s", c.baseURL, url.PathEscape(id), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("tmdb: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Unavailable("tmdb: fetching movie "+id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperror.NotFound("movie", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Unavailable("tmdb: fetching movie "+id, statusError(resp))
	}

	var details model.MovieDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, apperror.Unavailable("tmdb: decoding movie "+id, err)
	}

	return &details, nil
}

// statusError builds an error from TMDB's {"status_code","status_message"} body.
func statusError(resp *http.Response) error {
	var body struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if json.Unmarshal(raw, &body) == nil && body.StatusMessage != "" {
		return fmt.Errorf("status %d: %s (code %d)", resp.StatusCode, body.StatusMessage, body.StatusCode)
	}
	return fmt.Errorf("status %d", resp.StatusCode)
}

// PosterURL turns a poster path into an image URL. size is a TMDB size name
// such as "w500" or "original". An empty path yields "".
func PosterURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "w500"
	}
	return ImageBaseURL + "/" + size + "/" + strings.TrimPrefix(path, "/")
}
