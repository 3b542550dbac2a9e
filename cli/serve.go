// ABOUTME: HTTP server subcommand
// ABOUTME: Validates config, wires the web server, and shuts down on interrupt
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/taxdesk/auth"
	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/logging"
	"github.com/harperreed/taxdesk/payments"
	"github.com/harperreed/taxdesk/reconcile"
	"github.com/harperreed/taxdesk/web"
	"github.com/spf13/cobra"
)

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the back office HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logging.New(cfg.Log.Level, cfg.Log.Format)
			e, err := openEnv(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if _, ok := e.provider.(*payments.Fake); ok {
				log.Warn().Msg("using in-process fake payment provider")
			}

			srv := web.NewServer(web.Deps{
				Repos:      e.repos,
				CRM:        e.crm,
				Billing:    e.billing,
				Reconciler: reconcile.New(e.billing, log, e.metrics),
				Webhooks:   payments.NewStripeWebhook(cfg.Stripe.WebhookSecret),
				Tokens:     auth.NewJWTVerifier(cfg.Auth.JWTSecret),
				Authz:      auth.NewAuthorizer(e.repos.Users, cfg.Auth.BootstrapAdmins),
				Metrics:    e.metrics,
				Issuer: billing.Issuer{
					Name:    cfg.Billing.IssuerName,
					Email:   cfg.Billing.IssuerEmail,
					Address: cfg.Billing.IssuerAddress,
				},
				Log: log,
			}, web.Options{
				BasePath:        cfg.Server.BasePath,
				RequestTimeout:  cfg.Server.RequestTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				AllowedOrigins:  cfg.Server.AllowedOrigins,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().Str("addr", cfg.Server.Addr).Str("base_path", cfg.Server.BasePath).Str("version", a.version).Msg("starting server")
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address override")
	cmd.Flags().BoolVar(&a.fake, "fake-payments", false, "Use the in-process fake payment provider")
	return cmd
}
