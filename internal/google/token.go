// Package google implements the GA4, Search Console and Google Ads report
// fetchers. All three authenticate with one OAuth client and refresh token.
package google

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
)

// TokenSource returns a refreshing token source for the configured OAuth
// client. base carries the timeout used for token requests.
func TokenSource(ctx context.Context, cfg config.Google, base *http.Client) oauth2.TokenSource {
	endpoint := googleoauth.Endpoint
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
}

// Client exchanges the refresh token and returns an HTTP client that
// authorizes every request. The exchange happens here so a bad token fails
// the run before any report is requested.
func Client(ctx context.Context, cfg config.Google, timeout time.Duration, log zerolog.Logger) (*http.Client, error) {
	base := &http.Client{Timeout: timeout}
	ts := oauth2.ReuseTokenSource(nil, TokenSource(ctx, cfg, base))

	tok, err := ts.Token()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "oauth token refresh: %v", err)
	}
	log.Debug().Time("expiry", tok.Expiry).Msg("refreshed google access token")

	hc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	hc.Timeout = timeout
	return hc, nil
}
