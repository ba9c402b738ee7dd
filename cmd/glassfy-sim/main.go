package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"glassfy/internal/v2/storesim"
	"glassfy/pkg/v2/glassfy"
	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

type globalOptions struct {
	configPath  string
	catalogPath string
	apiKey      string
	baseURL     string
	watcherMode bool
	timeout     time.Duration
}

func main() {
	flag.Set("logtostderr", "true")
	cmd := newSimCommand()
	flag.Parse()
	defer glog.Flush()

	if err := cmd.Execute(); err != nil {
		glog.Fatalln(err)
	}
}

func newSimCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "glassfy-sim",
		Short: "Drive the Glassfy SDK against a simulated store",
		Long: `glassfy-sim runs the SDK with an in-memory billing client whose catalog
is read from a YAML file. Remote calls go to the configured Glassfy endpoint.`,
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "SDK configuration file (YAML)")
	f.StringVar(&opts.catalogPath, "catalog", "", "simulated store catalog (YAML)")
	f.StringVar(&opts.apiKey, "api-key", getEnvOrDefault("GLASSFY_API_KEY", ""), "API key, overrides the configuration file")
	f.StringVar(&opts.baseURL, "base-url", getEnvOrDefault("GLASSFY_BASE_URL", ""), "API base url, overrides the configuration file")
	f.BoolVar(&opts.watcherMode, "watcher", false, "run in watcher mode")
	f.DurationVar(&opts.timeout, "timeout", time.Minute, "overall timeout of the command")

	cmd.AddCommand(
		newInitCommand(opts),
		newOfferingsCommand(opts),
		newPurchaseCommand(opts),
		newRestoreCommand(opts),
		newPermissionsCommand(opts),
	)

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	return cmd
}

func getEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// session is one initialized SDK over a simulated store
type session struct {
	sdk    *glassfy.SDK
	looper *store.Looper
}

func (s *session) close() {
	if err := s.sdk.Close(); err != nil {
		glog.Warningf("close sdk: %v", err)
	}
	s.looper.Close()
}

func (o *globalOptions) config() (glassfy.Config, error) {
	cfg := glassfy.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = glassfy.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.apiKey != "" {
		cfg.APIKey = o.apiKey
	}
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if cfg.PackageName == "" {
		cfg.PackageName = "io.glassfy.sim"
	}
	if o.watcherMode {
		cfg.WatcherMode = true
	}
	return cfg, cfg.Validate()
}

func (o *globalOptions) start(ctx context.Context, simOpts ...storesim.Option) (*session, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	sim := storesim.New(simOpts...)
	if o.catalogPath != "" {
		if err := loadCatalog(o.catalogPath, sim); err != nil {
			return nil, err
		}
	}

	looper := store.NewLooper(0)
	sdk := glassfy.New(sim, glassfy.WithMainThread(looper))
	sdk.SetPurchaseDelegate(types.PurchaseDelegateFunc(func(p *types.PurchaseRecord, isSubscription bool) {
		glog.Infof("purchase delivered: products:%v subscription:%t token:%s", p.ProductIDs, isSubscription, p.PurchaseToken)
	}))

	if _, err := sdk.Initialize(ctx, cfg); err != nil {
		looper.Close()
		return nil, err
	}
	return &session{sdk: sdk, looper: looper}, nil
}

func (o *globalOptions) context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newInitCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the SDK and print the resulting state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()
			s, err := opts.start(ctx)
			if err != nil {
				return err
			}
			defer s.close()
			fmt.Println(s.sdk.State())
			return nil
		},
	}
}

func newOfferingsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "offerings",
		Short: "List the offerings available on the simulated store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()
			s, err := opts.start(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			offerings, err := s.sdk.Offerings(ctx)
			if err != nil {
				return err
			}
			return printJSON(offerings)
		},
	}
}

func newPurchaseCommand(opts *globalOptions) *cobra.Command {
	var upgradeFrom string
	var replacement int
	cmd := &cobra.Command{
		Use:   "purchase SKU",
		Short: "Buy a sku; the simulated store completes the purchase flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()
			s, err := opts.start(ctx, storesim.WithAutoComplete())
			if err != nil {
				return err
			}
			defer s.close()

			sku, err := s.sdk.Sku(ctx, args[0])
			if err != nil {
				return err
			}
			var update *types.SubscriptionUpdate
			if upgradeFrom != "" {
				update = &types.SubscriptionUpdate{OriginalSku: upgradeFrom, Replacement: types.ReplacementMode(replacement)}
			}
			tx, err := s.sdk.Purchase(ctx, nil, sku, update)
			if err != nil {
				return err
			}
			return printJSON(tx)
		},
	}
	cmd.Flags().StringVar(&upgradeFrom, "upgrade-from", "", "sku identifier of the subscription being replaced")
	cmd.Flags().IntVar(&replacement, "replacement", int(types.DefaultReplacementMode), "replacement mode used for upgrades")
	return cmd
}

func newRestoreCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Send the simulated purchase history to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()
			s, err := opts.start(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			perms, err := s.sdk.Restore(ctx)
			if err != nil {
				return err
			}
			return printJSON(perms)
		},
	}
}

func newPermissionsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "Print the subscriber permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()
			s, err := opts.start(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			perms, err := s.sdk.Permissions(ctx)
			if err != nil {
				return err
			}
			return printJSON(perms)
		},
	}
}
