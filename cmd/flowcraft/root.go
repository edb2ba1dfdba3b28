package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jrsteele09/flowcraft-client/client"
	"github.com/jrsteele09/flowcraft-client/internal/config"
	"github.com/jrsteele09/flowcraft-client/internal/logging"
	"github.com/jrsteele09/flowcraft-client/sessions"
	"github.com/jrsteele09/flowcraft-client/sessions/filerepo"
	"github.com/jrsteele09/flowcraft-client/sessions/redisrepo"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	apiURL     string
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "flowcraft",
	Short: "Command line client for the FlowCraft AI API",
	Long: `flowcraft keeps a session with the FlowCraft AI API and makes
authenticated calls with it. Expired access tokens are refreshed
automatically, once per call.

Examples:
  flowcraft login demo@flowcraft.ai
  flowcraft whoami
  flowcraft request GET /workflows
  flowcraft logout`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides FLOWCRAFT_API_BASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output JSON")
}

func loadConfig() (config.Config, error) {
	if configFile != "" {
		return config.NewFromFile(configFile)
	}
	return config.New(), nil
}

// session bundles a client with the store it owns. close releases the
// persistence backend.
type session struct {
	client *client.Client
	store  *sessions.Store
	close  func() error
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.SetupWriter(cmd.ErrOrStderr(), c.GetEnv(), c.GetLogLevel())

	repo, closeRepo, err := openRepo(ctx, c)
	if err != nil {
		return nil, err
	}
	store := sessions.NewStore(repo, sessions.WithLogger(logger))

	baseURL := c.GetAPIBaseURL()
	if apiURL != "" {
		baseURL = apiURL
	}
	return &session{
		client: client.New(baseURL, store,
			client.WithTimeout(c.GetRequestTimeout()),
			client.WithLogger(logger),
		),
		store: store,
		close: closeRepo,
	}, nil
}

func openRepo(ctx context.Context, c config.Config) (sessions.Repo, func() error, error) {
	noop := func() error { return nil }

	switch c.GetSessionBackend() {
	case config.SessionBackendMemory:
		return nil, noop, nil
	case config.SessionBackendRedis:
		repo, err := redisrepo.NewFromURL(ctx, c.GetRedisURL(), redisrepo.DefaultPrefix)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return filerepo.NewInFolder(c.GetDataFolder()), noop, nil
	}
}

// withSession runs fn with an open session and closes it afterwards.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close session backend")
		}
	}()
	return fn(ctx, s)
}

// run executes the root command and reports a failure once on stderr.
func run() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(w io.Writer, err error) {
	switch {
	case errors.Is(err, client.ErrSessionExpired):
		fmt.Fprintln(w, "Error: session expired, run 'flowcraft login' again")
	case errors.Is(err, client.ErrInvalidCredentials):
		fmt.Fprintf(w, "Error: %v\n", err)
	case errors.Is(err, client.ErrNetwork):
		fmt.Fprintf(w, "Error: cannot reach the API: %v\n", err)
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}
