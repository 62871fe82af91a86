package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendhq/tend/internal/engine"
)

var forecastDays int

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project network health into the future",
	RunE:  runForecast,
}

func init() {
	forecastCmd.Flags().IntVarP(&forecastDays, "days", "d", 7, "Days ahead to project")
}

func runForecast(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, engine.DefaultConfig())
	nf, err := eng.Forecast(forecastDays)
	if err != nil {
		return err
	}

	fmt.Printf("network health: %.1f now, %.1f in %d days (%.0f%% confidence)\n",
		nf.CurrentHealth, nf.ForecastedHealth, nf.DaysAhead, nf.Confidence*100)

	if len(nf.NeedingAttention) == 0 {
		fmt.Println("nobody crosses their attention threshold in that window")
		return nil
	}

	fmt.Println("\ncrossing their attention threshold:")
	for _, o := range nf.NeedingAttention {
		fmt.Printf("  %-24s %s in %d days (%.1f to %.1f)\n",
			o.Name, o.Tier, o.DaysUntilAttention, o.CurrentScore, o.ForecastedScore)
	}
	return nil
}
