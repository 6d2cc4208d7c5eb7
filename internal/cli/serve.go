package cli

import (
	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides http.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if serveAddr != "" {
		cfg.HTTP.Addr = serveAddr
	}

	ctx := cmd.Context()
	b := newBoard(s)

	var chatter server.Chatter
	svc, err := newChat(ctx, s, b)
	switch {
	case err == nil:
		chatter = svc
	case errors.Is(err, errors.ErrMissingCredentials):
		logger.Warn().Err(err).Msg("chat disabled")
	default:
		return err
	}

	return server.New(cfg, s, b, chatter, newPipeline(s), logger).ListenAndServe(ctx)
}
