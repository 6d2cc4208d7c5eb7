package semrush

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/ingest"
	"github.com/imkarma/logiri/internal/store"
)

const overview = "Domain;Database;Rank;Organic Keywords;Organic Traffic;Organic Cost;Adwords Keywords;Adwords Traffic;Adwords Cost\r\n" +
	"doubledtrailers.com;us;48211;9120;30512;41230.5;210;1800;2950.25\r\n"

func overviewSpec(t *testing.T) ingest.ReportSpec {
	t.Helper()
	specs, err := ingest.Reports(store.SourceSemrush, config.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, specs, 1)
	return specs[0]
}

func server(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "domain_ranks", q.Get("type"))
		assert.Equal(t, "k3y", q.Get("key"))
		assert.Equal(t, "doubledtrailers.com", q.Get("domain"))
		assert.Equal(t, "us", q.Get("database"))
		assert.Equal(t, "Dn,Db,Rk,Or,Ot,Oc,Ad,At,Ac", q.Get("export_columns"))
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func client(srv *httptest.Server) *Client {
	return NewClient(srv.Client(), config.Semrush{APIKey: "k3y", BaseURL: srv.URL + "/"}, "doubledtrailers.com", zerolog.Nop())
}

func TestFetch(t *testing.T) {
	srv := server(t, overview, http.StatusOK)

	rows, err := client(srv).Fetch(context.Background(), overviewSpec(t))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"doubledtrailers.com", "us"}, rows[0].Dimensions)
	assert.Equal(t, 48211.0, rows[0].Metrics["Rk"])
	assert.Equal(t, 41230.5, rows[0].Metrics["Oc"])
	assert.Equal(t, 2950.25, rows[0].Metrics["Ac"])
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		wantErr error
	}{
		{"api error", "ERROR 120 :: WRONG KEY - ID PAIR", http.StatusOK, errors.ErrUpstream},
		{"http error", "forbidden", http.StatusForbidden, errors.ErrUpstream},
		{"short row", "Database;Domain\nus;x\n", http.StatusOK, errors.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client(server(t, tt.body, tt.status)).Fetch(context.Background(), overviewSpec(t))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetch_LongErrorBodyIsTruncated(t *testing.T) {
	page := "<html>" + strings.Repeat("gateway timeout ", 5000) + "</html>"
	_, err := client(server(t, page, http.StatusBadGateway)).Fetch(context.Background(), overviewSpec(t))
	require.ErrorIs(t, err, errors.ErrUpstream)
	assert.Less(t, len(err.Error()), snippetLen+100)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.NotContains(t, err.Error(), "</html>")
}

func TestFetch_NothingFound(t *testing.T) {
	srv := server(t, "ERROR 50 :: NOTHING FOUND", http.StatusOK)
	rows, err := client(srv).Fetch(context.Background(), overviewSpec(t))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParse_HeaderOnly(t *testing.T) {
	rows, err := parse("Database;Domain;Rank", overviewSpec(t))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRedact(t *testing.T) {
	err := errors.New(`Get "https://api.semrush.com/?key=s3cret&type=domain_ranks": dial tcp: timeout`)
	assert.NotContains(t, redact(err, "s3cret"), "s3cret")
}

func TestRegister(t *testing.T) {
	srv := server(t, overview, http.StatusOK)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Semrush.BaseURL = srv.URL + "/"

	s, err := store.New(filepath.Join(dir, "t.db"))
	require.NoError(t, err)
	defer s.Close()

	p := ingest.New(s, cfg, clock.Fixed(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)), zerolog.Nop())
	Register(p, cfg, zerolog.Nop())

	_, err = p.Run(context.Background(), store.SourceSemrush)
	assert.ErrorIs(t, err, errors.ErrMissingCredentials)

	cfg.Semrush.APIKey = "k3y"
	run, err := p.Run(context.Background(), store.SourceSemrush)
	require.NoError(t, err)
	assert.Equal(t, ingest.RunCompleted, run.Status)

	rows, err := s.ReadLatestSnapshot(context.Background(), store.SourceSemrush, "overview", "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "doubledtrailers.com", rows[0].Dim("domain"))
	assert.Equal(t, 41230.5, rows[0].Metric("organic_cost"))
}
