package intra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/intra-rank/internal/apperror"
	"github.com/sakif/intra-rank/internal/metrics"
	"github.com/sakif/intra-rank/internal/model"
	"github.com/sakif/intra-rank/internal/repository"
)

// expiryGuard is subtracted from the upstream expires_in when the expiry
// is persisted: a token with ten seconds left is treated as already
// expired, so we never hand out a token that dies mid-request.
const expiryGuard = 10 * time.Second

// Refresher keeps the singleton service token valid across its lifecycle:
// load, probe, refresh, persist.
//
// TWO STRATEGIES:
//   - EnsureValid probes the API on every call and refreshes on rejection.
//     Simple and always correct, at the cost of one extra round trip.
//   - EnsureValidCached trusts the persisted expiry timestamp and only
//     refreshes when it has passed. No probe, but wrong if the token is
//     revoked out-of-band.
//
// The server wires EnsureValid for service calls; the cached variant
// exists for callers that run hot loops against the API.
//
// FAIL-CLOSED CONTRACT:
// Both return ("", err) whenever a valid token cannot be produced —
// missing row, failed exchange, store error. Callers must treat any error
// as "unauthenticated, do not proceed"; nothing here panics or retries.
type Refresher struct {
	tokens repository.TokenRepository
	client *Client
	oauth  *oauth2.Config
	logger *slog.Logger
}

// NewRefresher creates a Refresher. clientID and clientSecret are the
// OAuth application credentials registered with the intra; the token
// endpoint is derived from the API client's base URL so tests can point
// both at one httptest server.
func NewRefresher(tokens repository.TokenRepository, client *Client, clientID, clientSecret string, logger *slog.Logger) *Refresher {
	return &Refresher{
		tokens: tokens,
		client: client,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  client.baseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logger: logger,
	}
}

// EnsureValid returns a currently-valid access token, refreshing and
// persisting a new pair if the stored one no longer passes the probe.
func (r *Refresher) EnsureValid(ctx context.Context) (string, error) {
	stored, err := r.tokens.GetToken(ctx)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", fmt.Errorf("intra: service token not configured: %w", err)
		}
		return "", fmt.Errorf("intra: loading service token: %w", err)
	}

	// Probe first: a passing token is returned untouched. Transport
	// failures read as "needs refresh" — conflated on purpose, the
	// refresh exchange will fail too if the network is really down.
	if err := r.client.probe(ctx, stored.AccessToken); err == nil {
		return stored.AccessToken, nil
	}

	return r.refresh(ctx, stored)
}

// EnsureValidCached returns the stored access token as long as its
// persisted expiry (already shortened by expiryGuard at save time) is in
// the future, refreshing proactively otherwise. No validation probe.
func (r *Refresher) EnsureValidCached(ctx context.Context) (string, error) {
	stored, err := r.tokens.GetToken(ctx)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", fmt.Errorf("intra: service token not configured: %w", err)
		}
		return "", fmt.Errorf("intra: loading service token: %w", err)
	}

	if stored.ExpiresAt > 0 && time.Now().Unix() < stored.ExpiresAt {
		return stored.AccessToken, nil
	}

	return r.refresh(ctx, stored)
}

// refresh exchanges the stored refresh token for a new pair and persists
// it. oauth2.Config.TokenSource seeded with only a RefreshToken performs
// exactly the grant_type=refresh_token POST we need.
func (r *Refresher) refresh(ctx context.Context, stored *model.ServiceToken) (string, error) {
	src := r.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		r.logger.Warn("service token refresh failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("intra: refreshing service token: %w", err)
	}
	metrics.TokenRefreshes.WithLabelValues("ok").Inc()

	next := &model.ServiceToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	// Some providers omit the rotated refresh token — keep the old one
	// rather than destroying our only way back in.
	if next.RefreshToken == "" {
		next.RefreshToken = stored.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		next.ExpiresAt = tok.Expiry.Add(-expiryGuard).Unix()
	}

	if err := r.tokens.SaveToken(ctx, next); err != nil {
		return "", fmt.Errorf("intra: persisting refreshed token: %w", err)
	}

	r.logger.Info("service token refreshed",
		slog.Int64("expiresAt", next.ExpiresAt),
	)

	return next.AccessToken, nil
}
