// Package main provides the CLI entry point for rtp2httpd, a gateway
// that republishes multicast RTP/UDP streams as unicast HTTP streams.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oskar456/rtp2httpd/internal/config"
	"github.com/oskar456/rtp2httpd/internal/gateway"
	"github.com/oskar456/rtp2httpd/internal/logging"
	"github.com/oskar456/rtp2httpd/internal/metrics"
	"github.com/oskar456/rtp2httpd/internal/registry"
	"github.com/oskar456/rtp2httpd/internal/resolver"
	"github.com/oskar456/rtp2httpd/internal/version"
	"github.com/oskar456/rtp2httpd/internal/wizard"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "rtp2httpd",
		Short:   "Republish multicast RTP/UDP streams as unicast HTTP",
		Version: version.Version,
	}

	run := runCmd()
	// With no subcommand, rtp2httpd runs the gateway with run's flags.
	rootCmd.Flags().AddFlagSet(run.Flags())
	rootCmd.RunE = run.RunE

	rootCmd.AddCommand(run)
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(wizardCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runFlags holds the CLI-flag overlay for the run/validate commands,
// mirroring the historic getopt_long surface (§6).
type runFlags struct {
	configPath string
	verbose    int
	quiet      bool
	daemon     bool
	nodaemon   bool
	noudpxy    bool
	maxClients int
	listen     []string
	metrics    string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "load this config file (no config file is read without it)")
	cmd.Flags().CountVarP(&f.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "silence all but fatal log messages")
	cmd.Flags().BoolVarP(&f.daemon, "daemon", "d", false, "set the daemonise option (the process does not detach)")
	cmd.Flags().BoolVarP(&f.nodaemon, "nodaemon", "D", false, "clear the daemonise option (default)")
	cmd.Flags().BoolVarP(&f.noudpxy, "noudpxy", "U", false, "disable dynamic URL resolution")
	cmd.Flags().IntVarP(&f.maxClients, "maxclients", "m", 0, "admission cap, must be >= 1")
	cmd.Flags().StringArrayVarP(&f.listen, "listen", "l", nil, "add a bind endpoint ([addr:]port), repeatable")
	cmd.Flags().StringVar(&f.metrics, "metrics-listen", "", "address for the /metrics and /status endpoints")
}

// overrides turns the cobra flag values into a config.Overrides,
// respecting Cobra's Changed() so unset flags never clobber file
// settings (the historic getopt_long precedence, §6).
func (f *runFlags) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides

	if cmd.Flags().Changed("verbose") || cmd.Flags().Changed("quiet") {
		o.VerbositySet = true
		switch {
		case f.quiet:
			o.Verbosity = logging.Fatal
		case f.verbose >= 2:
			o.Verbosity = logging.Debug
		case f.verbose == 1:
			o.Verbosity = logging.Info
		default:
			o.Verbosity = logging.Error
		}
	}

	if cmd.Flags().Changed("daemon") || cmd.Flags().Changed("nodaemon") {
		o.DaemoniseSet = true
		o.Daemonise = f.daemon && !f.nodaemon
	}

	if cmd.Flags().Changed("noudpxy") {
		o.UDPxySet = true
		o.UDPxy = !f.noudpxy
	}

	if cmd.Flags().Changed("maxclients") {
		o.MaxClientsSet = true
		o.MaxClients = f.maxClients
	}

	o.Binds = f.listen
	o.MetricsListen = f.metrics

	return o
}

func loadConfig(f *runFlags, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Defaults()

	if f.configPath != "" {
		file, err := os.Open(f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("opening config file: %w", err)
		}
		defer file.Close()

		parsed, errs := config.Parse(file, cfg)
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
		}
		cfg = parsed
	}

	cfg, errs := config.Apply(cfg, f.overrides(cmd))
	if len(errs) != 0 {
		return config.Config{}, errs[0]
	}

	if err := config.Validate(&cfg); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func runCmd() *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the gateway (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f, cmd)
			if err != nil {
				return err
			}

			logFormat := "text"
			log := logging.New(cfg.Verbosity, logFormat, os.Stderr)

			reg, warnings := registry.Build(cfg.Services, nil)
			for _, w := range warnings {
				log.Log(logging.Error, "registry: %s", w)
			}

			res := resolver.New(reg, cfg.UDPxy, nil)
			m := metrics.NewMetrics()

			binds := make([]gateway.Endpoint, len(cfg.Binds))
			for i, b := range cfg.Binds {
				binds[i] = gateway.Endpoint{Host: b.Host, Port: b.Port}
			}

			d := gateway.New(gateway.Config{
				Binds:         binds,
				MaxClients:    cfg.MaxClients,
				MaxListeners:  cfg.MaxListeners,
				ServerIdent:   version.ServerIdent(),
				Registry:      reg,
				Resolver:      res,
				Logger:        log,
				Metrics:       m,
				MetricsListen: cfg.MetricsListen,
			})

			if err := d.Start(); err != nil {
				return fmt.Errorf("starting gateway: %w", err)
			}

			log.Log(logging.Info, "rtp2httpd %s started, maxclients=%d", version.Version, cfg.MaxClients)

			waitForSignal()
			d.Stop()
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

func validateCmd() *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a config file without starting the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f, cmd)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d bind(s), %d service(s), maxclients=%d\n",
				len(cfg.Binds), len(cfg.Services), cfg.MaxClients)
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

func wizardCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Interactively build a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := wizard.Run()
			if err != nil {
				return fmt.Errorf("setup wizard failed: %w", err)
			}

			path := outputPath
			if path == "" {
				path = result.ConfigPath
			}

			if err := wizard.WriteFile(path, result.Config); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}

			fmt.Printf("Wrote config to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "config", "c", "", "path to write the generated config file")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.ServerIdent())
			return nil
		},
	}
}
