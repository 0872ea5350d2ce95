package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firewatch/buzzer"
	"firewatch/internal/logging"
)

func main() {
	var (
		addr     string
		pinName  string
		logLevel string
	)

	root := &cobra.Command{
		Use:   "buzzerd",
		Short: "Drive a GPIO buzzer from fire alarm requests",
		Example: `  buzzerd
  buzzerd --addr :8080 --pin GPIO27`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(logLevel)
			if err != nil {
				return err
			}

			pin, err := buzzer.OpenPin(pinName)
			if err != nil {
				return fmt.Errorf("open buzzer pin: %w", err)
			}
			log.Info().Str("pin", pinName).Msg("buzzer initialized")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return buzzer.NewServer(pin, log).ListenAndServe(ctx, addr)
		},
	}

	root.Flags().StringVar(&addr, "addr", ":5000", "listen address")
	root.Flags().StringVar(&pinName, "pin", buzzer.DefaultPin, "GPIO pin name the buzzer is wired to")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
