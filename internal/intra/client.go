// Package intra talks to the 42 intra API: token validation, the
// refresh-token exchange, and the paginated cursus_users listing.
//
// Everything upstream-shaped lives here — the rest of the application only
// sees model structs and apperror values. JSON is decoded once, at this
// boundary, into explicit structs; records missing required nested fields
// are dropped here rather than trusted downstream.
package intra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sakif/intra-rank/internal/apperror"
	"github.com/sakif/intra-rank/internal/metrics"
	"github.com/sakif/intra-rank/internal/model"
)

// DefaultBaseURL is the production intra API root.
const DefaultBaseURL = "https://api.intra.42.fr"

// pageSize is the page[size] we request from cursus_users. 100 is the
// intra's documented maximum.
const pageSize = 100

// ErrPageFetch marks a paginated fetch that stopped early because a page
// request failed (transport error or non-2xx — including 429s, which the
// intra rate limiter hands out freely).
//
// Callers receive the records collected before the failure together with
// this error, so they can tell "exhausted" apart from "aborted" and decide
// whether the partial set is still worth reconciling.
var ErrPageFetch = errors.New("intra: page fetch failed")

// acceptedGrades is the client-side membership filter: only regular
// students (Cadet) and post-common-core students (Transcender) appear on
// the leaderboard. Pisciners, staff and alumni carry other grades.
var acceptedGrades = map[string]bool{
	"Cadet":       true,
	"Transcender": true,
}

// Client is a thin HTTP client for the intra API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	probeUserID int
	logger      *slog.Logger
}

// NewClient creates an intra API client.
//
// probeUserID is the user fetched by Validate to check a bearer token —
// any id that exists works, the response body is discarded.
func NewClient(baseURL string, probeUserID int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		probeUserID: probeUserID,
		logger:      logger,
	}
}

// get issues an authenticated GET and returns the response. The caller
// owns the body.
func (c *Client) get(ctx context.Context, token, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("intra: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// Validate checks a caller-supplied bearer token by fetching the probe
// user. Any transport error or non-2xx status means the token is not
// usable — we deliberately do not distinguish "expired" from "network
// down" here; either way the caller must not proceed.
func (c *Client) Validate(ctx context.Context, token string) error {
	if token == "" {
		return apperror.Unauthorized("missing bearer token")
	}

	resp, err := c.get(ctx, token, fmt.Sprintf("%s/v2/users/%d", c.baseURL, c.probeUserID))
	if err != nil {
		return apperror.Unauthorized("token validation failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperror.Unauthorized("token rejected by intra")
	}

	return nil
}

// probe checks the stored service token against /v2/me. Same conflation
// as Validate: any failure reads as "needs refresh".
func (c *Client) probe(ctx context.Context, token string) error {
	resp, err := c.get(ctx, token, c.baseURL+"/v2/me")
	if err != nil {
		return fmt.Errorf("intra: probing /v2/me: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("intra: /v2/me returned status %d", resp.StatusCode)
	}

	return nil
}

// FetchCampus walks the cursus_users listing for one campus to exhaustion
// and returns every active Cadet/Transcender, eagerly collected (ranking
// needs the full set, so there is nothing to stream).
//
// PAGINATION PROTOCOL:
// The endpoint is page-indexed, not cursor-based. We request page 0, 1, 2…
// until a page comes back empty — the intra signals exhaustion with an
// empty JSON array, not a 404.
//
// On a failed page (transport error or non-2xx) the walk stops and the
// records collected so far are returned together with ErrPageFetch. No
// retry or backoff: the sync is re-triggered on every extension load, so
// the next run picks up whatever this one missed.
func (c *Client) FetchCampus(ctx context.Context, token string, campusID int) ([]model.CursusUser, error) {
	var collected []model.CursusUser

	for page := 0; ; page++ {
		pageUsers, err := c.fetchPage(ctx, token, campusID, page)
		if err != nil {
			c.logger.Warn("cursus page fetch failed, aborting walk",
				slog.Int("campusId", campusID),
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			return collected, fmt.Errorf("%w: campus %d page %d: %v", ErrPageFetch, campusID, page, err)
		}
		if len(pageUsers) == 0 {
			return collected, nil
		}

		for _, u := range pageUsers {
			if !acceptedGrades[u.Grade] {
				continue
			}
			if u.User.Login == "" {
				// Shape violation — quarantine rather than insert a row
				// we could never address again.
				c.logger.Warn("dropping cursus record without login",
					slog.Int("campusId", campusID),
					slog.Int("page", page),
				)
				continue
			}
			collected = append(collected, u)
		}
	}
}

// fetchPage requests a single page of the listing.
func (c *Client) fetchPage(ctx context.Context, token string, campusID, page int) ([]model.CursusUser, error) {
	q := url.Values{}
	q.Set("filter[campus_id]", strconv.Itoa(campusID))
	q.Set("filter[active]", "true")
	q.Set("page[size]", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("sort", "-level")

	resp, err := c.get(ctx, token, c.baseURL+"/v2/cursus_users?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var users []model.CursusUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}

	metrics.FetchPages.Inc()
	return users, nil
}
