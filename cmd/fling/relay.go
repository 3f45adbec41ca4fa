package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lanterncrew/fling/internal/config"
	"github.com/lanterncrew/fling/internal/logging"
	"github.com/lanterncrew/fling/internal/relay"
)

func relayCmd() *cobra.Command {
	var (
		cfgPath     string
		bindAddr    string
		maxClients  int
		peerTimeout time.Duration
		metricsAddr string
		logLevel    string
		logFormat   string
	)

	cmd := &cobra.Command{
		Use:   "relay [flags]",
		Short: "Run the untrusted rendezvous server that pairs senders and receivers",
		Long: `relay runs the server that two peers connect to in order to find each
other. It only ever sees a pairing id and a SPAKE2 element; once it has
matched both sides it forwards their connection verbatim and cannot read
the password or any file contents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRelayConfig(cfgPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("bind") {
				cfg.Address = bindAddr
			}
			if cmd.Flags().Changed("max-clients") {
				cfg.MaxClients = maxClients
			}
			if cmd.Flags().Changed("timeout") {
				cfg.PeerTimeout = peerTimeout
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddress = metricsAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return runRelay(cfg)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&bindAddr, "bind", ":4545", "Address to listen on")
	cmd.Flags().IntVar(&maxClients, "max-clients", 1000, "Maximum peers waiting for a partner at once (0 = unlimited)")
	cmd.Flags().DurationVar(&peerTimeout, "timeout", 30*time.Second, "How long a peer waits for its partner before giving up")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (empty disables metrics)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")

	return cmd
}

func loadRelayConfig(path string) (*config.RelayConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runRelay(cfg *config.RelayConfig) error {
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	registry := prometheus.NewRegistry()
	metrics := relay.NewMetricsWithRegistry(registry)

	var metricsServer *relay.MetricsServer
	if cfg.MetricsAddress != "" {
		metricsServer = relay.NewMetricsServer(cfg.MetricsAddress, registry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("metrics server started", logging.KeyBindAddr, metricsServer.Address().String())
	}

	server := relay.NewServer(relay.Config{
		Address:     cfg.Address,
		MaxClients:  cfg.MaxClients,
		PeerTimeout: cfg.PeerTimeout,
		Logger:      logger,
	}, metrics)

	if err := server.Start(); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Relay listening on %s (max clients: %d)\n", server.Address().String(), cfg.MaxClients)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Fprintf(os.Stdout, "\nReceived signal %v, shutting down...\n", sig)

	if err := server.Stop(); err != nil {
		logger.Error("error stopping relay", logging.KeyError, err)
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error("error stopping metrics server", logging.KeyError, err)
		}
	}
	return nil
}
