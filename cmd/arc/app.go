package main

import (
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arcreactor/workspace/internal/api"
	"github.com/arcreactor/workspace/internal/chat"
	"github.com/arcreactor/workspace/internal/events"
	"github.com/arcreactor/workspace/internal/infrastructure/config"
	"github.com/arcreactor/workspace/internal/infrastructure/logging"
	"github.com/arcreactor/workspace/internal/infrastructure/monitoring"
	"github.com/arcreactor/workspace/internal/prefs"
)

// rootFlags override the environment configuration.
type rootFlags struct {
	logLevel  string
	dev       bool
	origin    string
	apiURL    string
	chatURL   string
	prefsPath string
	token     string
	json      bool
}

// app is the state shared by every command, built once flags are parsed.
type app struct {
	flags   rootFlags
	cfg     *config.Config
	logger  *logging.Logger
	prefs   *prefs.Store
	metrics *monitoring.Metrics
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	f := a.flags
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if cmd.Flags().Changed("dev") {
		cfg.Logging.Development = f.dev
	}
	if f.origin != "" {
		cfg.Client.Origin = f.origin
	}
	if f.apiURL != "" {
		cfg.Client.APIURL = f.apiURL
	}
	if f.chatURL != "" {
		cfg.Client.ChatURL = f.chatURL
	}
	if f.prefsPath != "" {
		cfg.Prefs.Path = f.prefsPath
	}

	a.cfg = cfg
	a.logger = logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	a.metrics = monitoring.NewMetrics(prometheus.NewRegistry())

	a.prefs, err = prefs.Load(cfg.Prefs.Path)
	if err != nil {
		return err
	}
	return nil
}

// Token implements api.TokenSource: the --token flag, else the stored token.
func (a *app) Token() string {
	if a.flags.token != "" {
		return a.flags.token
	}
	return a.prefs.Token()
}

func (a *app) apiClient() *api.Client {
	return api.NewClient(api.Options{
		BaseURL:          a.cfg.Client.APIBaseURL(),
		Timeout:          a.cfg.HTTP.Timeout,
		RetryMax:         a.cfg.HTTP.RetryMax,
		RequestsPerSec:   a.cfg.HTTP.RequestsPerSec,
		BreakerThreshold: a.cfg.HTTP.BreakerThreshold,
		Tokens:           a,
		Logger:           a.logger.Component("api"),
		Metrics:          a.metrics,
	})
}

func (a *app) eventsClient() *events.Client {
	return events.NewClient(events.Options{
		BaseURL: a.cfg.Client.APIBaseURL(),
		Tokens:  a,
		Logger:  a.logger.Component("events"),
	})
}

func (a *app) chatURL() (string, error) {
	origin, err := url.Parse(a.cfg.Client.Origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", a.cfg.Client.Origin, err)
	}
	return chat.ResolveURL(a.cfg.Client.ChatURL, origin)
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "arc",
		Short:         "Terminal client for the Arc pipeline workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")
	pf.BoolVar(&a.flags.dev, "dev", false, "human-readable development logs")
	pf.StringVar(&a.flags.origin, "origin", "", "workspace origin, overrides ARC_ORIGIN")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "REST base URL, overrides ARC_API_URL")
	pf.StringVar(&a.flags.chatURL, "chat-url", "", "chat socket URL, overrides NEXT_PUBLIC_CHAT_WS_URL")
	pf.StringVar(&a.flags.prefsPath, "prefs", "", "preferences file, overrides ARC_PREFS_PATH")
	pf.StringVar(&a.flags.token, "token", "", "bearer token for this invocation")
	pf.BoolVar(&a.flags.json, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newChatCommand(a),
		newRunsCommand(a),
		newPipelinesCommand(a),
		newTasksCommand(a),
		newWatchCommand(a),
		newSamplesheetCommand(a),
		newThemeCommand(a),
		newTokenCommand(a),
		newServeMockCommand(a),
	)
	return root
}
