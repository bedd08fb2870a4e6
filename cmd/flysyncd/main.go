// Command flysyncd is a reference daemon around the flyclient sync core:
// it loads a config.Config, dials the configured peers over TCP with a
// gob-encoded framing (the concrete transport the core itself leaves as
// an external collaborator), and runs until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beamlight/flyclient"
	"github.com/beamlight/flyclient/config"
	"github.com/beamlight/flyclient/history"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flysyncd",
		Short: "Runs the flyclient sync and request-multiplexing core against a set of peers",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "flyclient.toml", "path to the TOML config file")
	root.AddCommand(newStartCmd(), newConfigCmd())
	return root
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Dial the configured peers and run the sync loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			cb := &loggingCallbacks{logger: logger}
			store := history.NewMemStore()
			dialer := &tcpDialer{logger: logger}

			client := flyclient.New(cfg, store, cb, dialer, newGobCodec(), flyclient.WithLogger(logger))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := client.Start(ctx); err != nil {
				return err
			}
			logger.Info("flysyncd started", "peers", cfg.NodeAddresses)

			<-ctx.Done()
			logger.Info("shutting down")
			client.Stop()
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a starting-point TOML config file to --config",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(configPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return config.WriteDefault(f)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the loaded configuration, including defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("node_addresses = %v\n", cfg.NodeAddresses)
			fmt.Printf("use_proxy = %v\n", cfg.UseProxy)
			fmt.Printf("proxy_address = %q\n", cfg.ProxyAddress)
			fmt.Printf("reconnect_timeout_ms = %d\n", cfg.ReconnectTimeoutMS)
			fmt.Printf("poll_period_ms = %d\n", cfg.PollPeriodMS)
			fmt.Printf("close_connection_delay_ms = %d\n", cfg.CloseConnectionDelayMS)
			fmt.Printf("target_block_time_s = %d\n", cfg.TargetBlockTimeS)
			return nil
		},
	})
	return configCmd
}
