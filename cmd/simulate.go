package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/stockchat/internal/sim"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the purchase simulator on a timer and print the update feed",
	Long: `Runs the stock simulator as an independent background task: every
interval (config: simulate_interval) one unit of a randomly chosen
in-stock item is sold and the resulting update event printed. Stop with
Ctrl-C. Safe to run alongside an active chat against the same database.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, db, st, logger, err := openInventory(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := cfg.ValidateSimulate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	feed := sim.NewFeed()
	defer feed.Close()
	simulator, err := sim.New(st, feed, logger.With("component", "sim"))
	if err != nil {
		return err
	}

	events, cancel := feed.Subscribe()
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- simulator.Run(ctx, cfg.SimulateInterval)
	}()

	fmt.Printf("Simulating one purchase every %s. Ctrl-C to stop.\n", cfg.SimulateInterval)
	for {
		select {
		case ev := <-events:
			if ev.Delta != 0 {
				fmt.Printf("[%d] %s (now %d in stock)\n", ev.Sequence, ev.Message, ev.ResultingQuantity)
			} else {
				fmt.Printf("[%d] %s\n", ev.Sequence, ev.Message)
			}
		case err := <-done:
			return err
		}
	}
}
