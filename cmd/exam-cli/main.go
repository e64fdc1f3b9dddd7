package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	examcli "github.com/codateam/hackerx-client-sub000/internal/cli"
	"github.com/codateam/hackerx-client-sub000/internal/config"
	"github.com/codateam/hackerx-client-sub000/internal/journal"
	"github.com/codateam/hackerx-client-sub000/internal/lmsclient"
	"github.com/codateam/hackerx-client-sub000/internal/logging"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "exam-cli",
		Usage:   "take LMS exams from the terminal",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file (default .env when present)"},
			&cli.StringFlag{Name: "server", Usage: "LMS API base URL"},
			&cli.StringFlag{Name: "token", Usage: "bearer token for the LMS API"},
			&cli.StringFlag{Name: "journal", Usage: "path of the local submission journal"},
			&cli.DurationFlag{Name: "autosave", Usage: "progress autosave interval (0 disables)"},
			&cli.DurationFlag{Name: "timeout", Usage: "HTTP request timeout"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn, error or disabled"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Commands: []*cli.Command{
			{
				Name:      "take",
				Usage:     "start or resume an exam",
				ArgsUsage: "<exam-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: examcli.FormatText, Usage: "result format: text, json or yaml"},
				},
				Action: runTake,
			},
			{
				Name:      "results",
				Usage:     "show recorded submissions",
				ArgsUsage: "[exam-id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: examcli.FormatText, Usage: "text, json or yaml"},
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "max submissions to list"},
				},
				Action: runResults,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runTake(ctx context.Context, cmd *cli.Command) error {
	examID := strings.TrimSpace(cmd.Args().First())
	if examID == "" {
		return errors.New("usage: exam-cli take <exam-id>")
	}
	if err := examcli.CheckFormat(cmd.String("format")); err != nil {
		return err
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal %s: %w", cfg.Journal, err)
	}
	defer store.Close()

	client := lmsclient.New(cfg.ServerURL, &http.Client{Timeout: cfg.Timeout},
		lmsclient.WithToken(cfg.Token),
		lmsclient.WithLogger(logger),
	)
	expiry, _ := lmsclient.TokenExpiry(cfg.Token)

	logger.Info().
		Str("exam_id", examID).
		Str("server", client.BaseURL()).
		Dur("autosave", cfg.Autosave).
		Msg("starting exam session")

	return examcli.RunTake(ctx, os.Stdin, os.Stdout, examcli.TakeConfig{
		ExamID:           examID,
		ServerURL:        client.BaseURL(),
		API:              client,
		Journal:          store,
		Logger:           logger,
		AutosaveInterval: cfg.Autosave,
		TokenExpiry:      expiry,
		Format:           cmd.String("format"),
	})
}

func runResults(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}

	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal %s: %w", cfg.Journal, err)
	}
	defer store.Close()

	return examcli.RunResults(ctx, os.Stdout, store, cmd.Args().First(), cmd.String("format"), int(cmd.Int("limit")))
}

// setup resolves configuration with flags taking precedence and builds the
// stderr logger.
func setup(cmd *cli.Command) (config.Config, zerolog.Logger, error) {
	overrides := make(map[string]any)
	for flag, key := range map[string]string{
		"server":     config.KeyServerURL,
		"token":      config.KeyToken,
		"journal":    config.KeyJournal,
		"log-level":  config.KeyLogLevel,
		"log-format": config.KeyLogFormat,
	} {
		if cmd.IsSet(flag) {
			overrides[key] = cmd.String(flag)
		}
	}
	for flag, key := range map[string]string{
		"autosave": config.KeyAutosave,
		"timeout":  config.KeyTimeout,
	} {
		if cmd.IsSet(flag) {
			overrides[key] = cmd.Duration(flag)
		}
	}

	cfg, err := config.Load(config.Options{
		ConfigFile: cmd.String("config"),
		EnvFile:    cmd.String("env-file"),
		Overrides:  overrides,
	})
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logger, nil
}
