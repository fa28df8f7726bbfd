// Command smsc runs a standalone SMPP v3.4 SMSC server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajankovic/smpp/smsc"
	"github.com/ajankovic/smpp/smsc/logicpack"
)

// config holds the resolved CLI/env configuration for one run of the
// server, mirroring the original Rust binary's SmscConfig.
type config struct {
	bindAddress    string
	maxOpenSockets int64
	systemID       string
	logicName      string
	metricsAddr    string
	debug          bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config{}

	cmd := &cobra.Command{
		Use:   "smsc",
		Short: "Short Message Service Center (SMSC) speaking SMPP v3.4",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.bindAddress, "bind-address", "b", "0.0.0.0:8080", "address to bind on")
	flags.Int64VarP(&cfg.maxOpenSockets, "max-open-sockets", "m", 100, "maximum number of sockets that can be open")
	flags.StringVarP(&cfg.systemID, "system-id", "s", "rust_smpp", "system_id used as an identifier of the SMSC")
	flags.StringVar(&cfg.logicName, "logic", "delayed-dr", "smsc logic to run: delayed-dr or reject-all")
	flags.StringVar(&cfg.metricsAddr, "metrics-address", ":9090", "address the /metrics endpoint listens on")
	flags.BoolVarP(&cfg.debug, "verbose", "v", false, "enable debug logging")

	bindEnv(flags, "bind-address", "BIND_ADDRESS")
	bindEnv(flags, "max-open-sockets", "MAX_OPEN_SOCKETS")
	bindEnv(flags, "system-id", "SYSTEM_ID")
	bindEnv(flags, "logic", "SMSC_LOGIC")
	bindEnv(flags, "metrics-address", "METRICS_ADDRESS")
	bindEnv(flags, "verbose", "DEBUG")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		applyEnvOverrides(&cfg)
		return nil
	}

	return cmd
}

// bindEnv wires a flag to an environment variable through viper, so a
// value set in the environment is visible to applyEnvOverrides even
// when the flag itself wasn't passed on the command line.
func bindEnv(flags *pflag.FlagSet, flag, env string) {
	viper.BindPFlag(flag, flags.Lookup(flag))
	viper.BindEnv(flag, env)
}

func applyEnvOverrides(cfg *config) {
	if viper.IsSet("bind-address") {
		cfg.bindAddress = viper.GetString("bind-address")
	}
	if viper.IsSet("max-open-sockets") {
		cfg.maxOpenSockets = viper.GetInt64("max-open-sockets")
	}
	if viper.IsSet("system-id") {
		cfg.systemID = viper.GetString("system-id")
	}
	if viper.IsSet("logic") {
		cfg.logicName = viper.GetString("logic")
	}
	if viper.IsSet("metrics-address") {
		cfg.metricsAddr = viper.GetString("metrics-address")
	}
	if viper.IsSet("verbose") {
		cfg.debug = viper.GetBool("verbose")
	}
}

func run(cfg config) error {
	log := smsc.NewLogrusLogger(logrus.InfoLevel)
	if cfg.debug {
		log.L.SetLevel(logrus.DebugLevel)
	}

	logic, err := selectLogic(cfg.logicName)
	if err != nil {
		return err
	}

	srv := smsc.NewServer(cfg.bindAddress, logic, log, cfg.systemID, cfg.maxOpenSockets)

	go serveMetrics(cfg.metricsAddr, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.InfoF("smsc listening on %s (logic=%s, system_id=%s)", cfg.bindAddress, cfg.logicName, cfg.systemID)
		errc <- srv.ListenAndServe(ctx)
	}()

	select {
	case <-ctx.Done():
		log.InfoF("shutting down")
		return srv.Shutdown()
	case err := <-errc:
		return err
	}
}

func selectLogic(name string) (smsc.Logic, error) {
	switch name {
	case "delayed-dr":
		return logicpack.NewDelayedDR(), nil
	case "reject-all":
		return logicpack.NewRejectAll(), nil
	default:
		return nil, fmt.Errorf("smsc: unknown logic %q (want delayed-dr or reject-all)", name)
	}
}

func serveMetrics(addr string, log smsc.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.ErrorF("metrics server on %s stopped: %s", addr, err)
	}
}
