package google

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/ingest"
	"github.com/imkarma/logiri/internal/store"
)

// Register wires the GA4, GSC and Ads connectors into p. Each connector
// checks its credentials, then refreshes the OAuth token.
func Register(p *ingest.Pipeline, cfg *config.Config, log zerolog.Logger) {
	p.Register(store.SourceGA4, func(ctx context.Context) (ingest.Fetcher, error) {
		if err := cfg.RequireGA4(); err != nil {
			return nil, err
		}
		hc, err := Client(ctx, cfg.Google, cfg.Ingest.Timeout, log)
		if err != nil {
			return nil, err
		}
		return NewGA4Client(hc, cfg.GA4, log), nil
	})

	p.Register(store.SourceGSC, func(ctx context.Context) (ingest.Fetcher, error) {
		if err := cfg.RequireGSC(); err != nil {
			return nil, err
		}
		hc, err := Client(ctx, cfg.Google, cfg.Ingest.Timeout, log)
		if err != nil {
			return nil, err
		}
		return NewGSCClient(hc, cfg.GSC, log), nil
	})

	p.Register(store.SourceAds, func(ctx context.Context) (ingest.Fetcher, error) {
		if err := cfg.RequireAds(); err != nil {
			return nil, err
		}
		hc, err := Client(ctx, cfg.Google, cfg.Ingest.Timeout, log)
		if err != nil {
			return nil, err
		}
		return NewAdsClient(hc, cfg.Ads, log), nil
	})
}
