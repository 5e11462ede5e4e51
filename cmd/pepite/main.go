// CLAUDE:SUMMARY CLI entry point for pepite — promo intelligence daemon with daemon and one-shot modes.
// Command pepite runs the promo intelligence daemon.
//
// Usage:
//
//	pepite -config pepite.yaml              # run the daemon
//	pepite -config pepite.yaml -once        # one scheduler sweep + one cycle, then exit
//	pepite -add-key scrapingbee:KEY         # register a credential and exit
//	pepite -pool-status gemini              # print pool health and exit
//	pepite -reset-keys gemini               # reactivate all keys of a service
//	pepite -list-campaigns                  # print campaigns and exit
//	pepite -delete-campaign cmp_xxx         # delete a campaign and its logs
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	pepite "github.com/chineur/pepite"
	"github.com/chineur/pepite/dbopen"
	"github.com/chineur/pepite/store"
)

func main() {
	configPath := flag.String("config", "", "path to pepite.yaml config file")
	once := flag.Bool("once", false, "run one sweep and one collision cycle, then exit")
	addKey := flag.String("add-key", "", "register a credential as service:secret and exit")
	poolStatus := flag.String("pool-status", "", "print credential pool health for a service and exit")
	resetKeys := flag.String("reset-keys", "", "reactivate every credential of a service and exit")
	listCampaigns := flag.Bool("list-campaigns", false, "print campaigns and exit")
	deleteCampaign := flag.String("delete-campaign", "", "delete a campaign by id and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		configPath:     *configPath,
		once:           *once,
		addKey:         *addKey,
		poolStatus:     *poolStatus,
		resetKeys:      *resetKeys,
		listCampaigns:  *listCampaigns,
		deleteCampaign: *deleteCampaign,
	}
	if err := run(ctx, logger, opts); err != nil && err != context.Canceled {
		logger.Error("pepite: fatal", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	configPath     string
	once           bool
	addKey         string
	poolStatus     string
	resetKeys      string
	listCampaigns  bool
	deleteCampaign string
}

func run(ctx context.Context, logger *slog.Logger, opts runOptions) error {
	cfg := pepite.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := pepite.LoadConfigFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithSchema(store.Schema), dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	app := pepite.NewApp(db, cfg, logger)

	switch {
	case opts.addKey != "":
		return registerKey(ctx, app, opts.addKey)
	case opts.poolStatus != "":
		return printPoolStatus(ctx, app, opts.poolStatus)
	case opts.resetKeys != "":
		return app.Pool.ResetAll(ctx, opts.resetKeys)
	case opts.listCampaigns:
		return printCampaigns(ctx, app)
	case opts.deleteCampaign != "":
		return app.Campaigns.Delete(ctx, opts.deleteCampaign)
	}

	if opts.once {
		due, err := app.Store.DispatchableCampaigns(ctx)
		if err != nil {
			return err
		}
		for _, c := range due {
			if err := app.Campaigns.Dispatch(ctx, c.ID); err != nil {
				logger.Error("dispatch failed", "campaign", c.ID, "error", err)
			}
		}
		app.Cycle(ctx)
		return nil
	}

	logger.Info("pepite started", "db", cfg.DBPath, "poll_interval", cfg.PollInterval)
	return app.Run(ctx)
}

func registerKey(ctx context.Context, app *pepite.App, spec string) error {
	service, secret, ok := strings.Cut(spec, ":")
	if !ok || service == "" || secret == "" {
		return fmt.Errorf("add-key: expected service:secret, got %q", spec)
	}
	added, err := app.Pool.AddKey(ctx, service, secret)
	if err != nil {
		return err
	}
	if !added {
		fmt.Println("key already registered")
		return nil
	}
	fmt.Println("key registered for", service)
	return nil
}

func printPoolStatus(ctx context.Context, app *pepite.App, service string) error {
	st, err := app.Pool.Status(ctx, service)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d keys (%d active, %d disabled)\n", st.Service, st.Total, st.Active, st.Disabled)
	for _, k := range st.Keys {
		state := "active"
		if !k.Active {
			state = "disabled"
		}
		fmt.Printf("  %s  %s  %s  errors=%d\n", k.ID, k.Preview, state, k.ErrorCount)
	}
	if st.Active == 0 && st.Total > 0 {
		at, err := app.Pool.NextEligibleAt(ctx, service)
		if err != nil {
			return err
		}
		if !at.IsZero() {
			fmt.Printf("  next key eligible at %s\n", at.Format(time.RFC3339))
		}
	}
	return nil
}

func printCampaigns(ctx context.Context, app *pepite.App) error {
	campaigns, err := app.Campaigns.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		fmt.Printf("%s  %-8s  %-7s  %s  %s\n", c.ID, c.Strategy, c.Status, c.Schedule, c.Name)
	}
	return nil
}
