package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendhq/tend/internal/engine"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-evaluate dormancy for every friend",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, engine.DefaultConfig())
	res, err := eng.SweepDormancy(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("evaluated %d friends: %d marked dormant, %d woken\n",
		res.Evaluated, len(res.MarkedDormant), len(res.Woken))
	return nil
}
