// ABOUTME: Root cobra command and shared wiring for every subcommand
// ABOUTME: Loads config, opens the store, and builds the services on demand
package cli

import (
	"fmt"
	"os"

	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/config"
	"github.com/harperreed/taxdesk/crm"
	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/logging"
	"github.com/harperreed/taxdesk/metrics"
	"github.com/harperreed/taxdesk/payments"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type app struct {
	version    string
	configPath string
	backend    string
	storePath  string
	fake       bool
}

// env is everything a command needs once config and store are open.
type env struct {
	cfg      *config.Config
	log      zerolog.Logger
	metrics  *metrics.Metrics
	repos    *db.Repositories
	crm      *crm.Service
	billing  *billing.Service
	provider payments.Provider
}

func (e *env) Close() error {
	return e.repos.Store.Close()
}

// NewRootCommand builds the taxdesk command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:           "taxdesk",
		Short:         "Taxdesk - tax preparation back office",
		Long:          `Taxdesk runs the back office for a tax preparation practice: the lead pipeline, invoices and Stripe checkout, and staff permissions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/taxdesk/config.toml)")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "Store backend override (badger, sqlite, charm, memory)")
	root.PersistentFlags().StringVar(&a.storePath, "store", "", "Store path override")

	root.AddCommand(
		a.serveCommand(),
		a.mcpCommand(),
		a.tuiCommand(),
		a.leadsCommand(),
		a.invoicesCommand(),
		a.usersCommand(),
		a.vizCommand(),
		a.versionCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.backend != "" {
		cfg.Store.Backend = a.backend
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	if a.fake {
		cfg.Stripe.UseFake = true
	}
	return cfg, nil
}

// open loads config and builds the services. Callers must Close the env.
func (a *app) open() (*env, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return openEnv(cfg, logging.New(cfg.Log.Level, cfg.Log.Format))
}

func openEnv(cfg *config.Config, log zerolog.Logger) (*env, error) {
	store, err := db.OpenStore(kv.Options{
		Backend:   cfg.Store.Backend,
		Path:      cfg.Store.Path,
		CharmHost: cfg.Store.CharmHost,
		AutoSync:  cfg.Store.AutoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var provider payments.Provider
	if cfg.Stripe.UseFake || cfg.Stripe.SecretKey == "" {
		provider = payments.NewFake()
	} else {
		provider = payments.NewStripe(cfg.Stripe.SecretKey)
	}

	m := metrics.New(nil)
	repos := db.New(store)
	return &env{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		repos:    repos,
		crm:      crm.NewService(repos.Leads, log, crm.WithMetrics(m)),
		provider: provider,
		billing: billing.NewService(repos, provider, billing.Options{
			Fee:        cfg.Billing.Fee,
			Currency:   cfg.Billing.Currency,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
		}, log, m),
	}, nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taxdesk version %s\n", a.version)
		},
	}
}
