package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tendhq/tend/internal/engine"
)

var driftCmd = &cobra.Command{
	Use:   "drift [friend]",
	Short: "Predict when a friendship will need attention",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDrift,
}

func runDrift(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	f, err := db.GetFriendByName(name)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("no friend named %q", name)
	}

	eng := engine.New(db, engine.DefaultConfig())
	d, err := eng.Drift(f.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", d.Name, d.Tier)
	if d.DaysUntilAttention <= 0 {
		fmt.Printf("  below their attention threshold now at %.1f (%s)\n", d.CurrentScore, d.Urgency)
		return nil
	}
	fmt.Printf("  score: %.1f now, %.1f at the crossing\n", d.CurrentScore, d.PredictedScore)
	fmt.Printf("  attention needed in %d days (%s urgency)\n", d.DaysUntilAttention, d.Urgency)
	fmt.Printf("  confidence: %.0f%%\n", d.Confidence*100)
	return nil
}
