package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tendhq/tend/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "tend",
	Short: "Keep your friendships from quietly drifting",
	Long: "Tend tracks the health of your friendships: scores that decay between\n" +
		"contact, rhythms learned per friend, and forecasts of who needs attention\n" +
		"next. Single Go binary, local SQLite, no cloud.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(friendsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(intendCmd)
}

// openDB opens the database for commands that work directly against it.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("TEND_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}
