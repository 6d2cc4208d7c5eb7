package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imkarma/logiri/internal/agent"
	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/chat"
	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/google"
	"github.com/imkarma/logiri/internal/ingest"
	"github.com/imkarma/logiri/internal/logging"
	"github.com/imkarma/logiri/internal/prompt"
	"github.com/imkarma/logiri/internal/semrush"
	"github.com/imkarma/logiri/internal/store"
)

const (
	dataDirName       = ".logiri"
	defaultConfigPath = dataDirName + "/config.yaml"
)

var (
	cfg       *config.Config
	logger    = zerolog.Nop()
	logCloser io.Closer
)

// setup loads the config and builds the logger before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	cfg = c

	l, closer, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Verbose: flagVerbose,
		Quiet:   flagQuiet,
		File:    cfg.Log.File,
		MaxSize: cfg.Log.MaxSizeMB,
		Backups: cfg.Log.MaxBackups,
		MaxAge:  cfg.Log.MaxAgeDays,
	})
	logger, logCloser = l, closer
	if err != nil {
		logger.Warn().Err(err).Msg("file logging disabled")
	}
	logger.Debug().Str("command", cmd.CommandPath()).Str("config", flagConfig).Msg("starting")
	return nil
}

func teardown(*cobra.Command, []string) error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

// mustStore opens the store, returning an error if logiri is not initialized.
func mustStore() (*store.Store, error) {
	if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
		return nil, fmt.Errorf("logiri not initialized. Run: logiri init")
	}
	return store.New(cfg.Database)
}

func newBoard(s *store.Store) *board.Service {
	return board.New(s, cfg.Team, clock.RealClock{}, logger)
}

// newPipeline returns a pipeline with every upstream connector registered.
func newPipeline(s *store.Store) *ingest.Pipeline {
	p := ingest.New(s, cfg, clock.RealClock{}, logger)
	google.Register(p, cfg, logger)
	semrush.Register(p, cfg, logger)
	return p
}

// newChat wires the assistant behind the prompt builder. It fails with
// ErrMissingCredentials when the provider key is not set.
func newChat(ctx context.Context, s *store.Store, b *board.Service) (*chat.Service, error) {
	a, err := agent.NewAssistant(ctx, cfg.Assistant, logger)
	if err != nil {
		return nil, err
	}
	pb := prompt.New(s, b, cfg, clock.RealClock{}, logger)
	return chat.New(s, b, pb, a, logger), nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task ID: %s", arg)
	}
	return id, nil
}

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
