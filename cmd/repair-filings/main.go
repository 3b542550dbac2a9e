// ABOUTME: Offline repair utility for tax filing records stored in user profiles
// ABOUTME: Provides dry-run and backup capabilities before rewriting any profile

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/harperreed/taxdesk/config"
	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/logging"
	"github.com/harperreed/taxdesk/repair"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to the XDG config home)")
	backend := flag.String("backend", "", "Store backend override (badger, sqlite, charm)")
	storePath := flag.String("store", "", "Store path override")
	userID := flag.String("user", "", "Repair a single user's filings")
	all := flag.Bool("all", false, "Repair every stored profile")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backupPath := flag.String("backup", "", "Backup file for original profiles (default: timestamped file in the working directory)")
	noBackup := flag.Bool("no-backup", false, "Skip writing a backup file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	if (*userID == "") == !*all {
		log.Fatal().Msg("exactly one of -user or -all is required")
	}

	opts := kv.Options{
		Backend:   cfg.Store.Backend,
		Path:      cfg.Store.Path,
		CharmHost: cfg.Store.CharmHost,
		AutoSync:  cfg.Store.AutoSync,
	}
	if *backend != "" {
		opts.Backend = *backend
	}
	if *storePath != "" {
		opts.Path = *storePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := runConfig{
		store:      opts,
		userID:     *userID,
		dryRun:     *dryRun,
		backupPath: *backupPath,
		backup:     !*noBackup,
	}
	if err := runRepair(ctx, run, log); err != nil {
		log.Fatal().Err(err).Msg("repair failed")
	}
	log.Info().Msg("repair completed successfully")
}

type runConfig struct {
	store      kv.Options
	userID     string
	dryRun     bool
	backupPath string
	backup     bool
}

func runRepair(ctx context.Context, run runConfig, log zerolog.Logger) error {
	store, err := db.OpenStore(run.store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	repos := db.New(store)

	opts := repair.Options{DryRun: run.dryRun}
	if run.backup && !run.dryRun {
		opts.Backup = repair.NewBackup()
	}
	r := repair.New(repos.Profiles, opts, log.With().Str("component", "repair").Logger(), nil)

	if run.dryRun {
		log.Info().Msg("[DRY RUN] no profiles will be rewritten")
	}

	var sum repair.Summary
	if run.userID != "" {
		res, err := r.FixUser(ctx, run.userID)
		if err != nil {
			return err
		}
		sum = summarize(res)
	} else {
		sum, err = r.FixAll(ctx)
		if err != nil {
			return err
		}
	}

	if opts.Backup != nil && opts.Backup.Len() > 0 {
		path := run.backupPath
		if path == "" {
			path = fmt.Sprintf("profiles.backup.%s.json", time.Now().Format("20060102-150405"))
		}
		if err := writeBackup(path, opts.Backup); err != nil {
			return err
		}
		log.Info().Str("path", path).Int("profiles", opts.Backup.Len()).Msg("backup created")
	}

	for _, w := range warnings(sum) {
		log.Warn().Msg(w)
	}
	for _, e := range sum.Errors {
		log.Error().Msg(e)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func summarize(res repair.Result) repair.Summary {
	sum := repair.Summary{
		Users:   1,
		Fixed:   res.Fixed,
		Dropped: res.Dropped,
		Errors:  append([]string{}, res.Errors...),
		Results: []repair.Result{res},
	}
	if res.Changed {
		sum.Changed = 1
	}
	return sum
}

func warnings(sum repair.Summary) []string {
	var out []string
	for _, res := range sum.Results {
		for _, w := range res.Warnings {
			out = append(out, fmt.Sprintf("user %s: %s", res.UserID, w))
		}
	}
	return out
}

func writeBackup(path string, b *repair.Backup) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	if _, err := b.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
