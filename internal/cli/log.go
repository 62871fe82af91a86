package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendhq/tend/internal/client"
	"github.com/tendhq/tend/internal/engine"
	"github.com/tendhq/tend/internal/store"
)

var (
	logCategory   string
	logKind       string
	logVibe       int
	logDuration   int
	logInitiator  string
	logImportance string
	logNotes      string
	logPlanned    bool
)

var logCmd = &cobra.Command{
	Use:   "log [friend names...]",
	Short: "Log a weave with one or more friends",
	Long: "Log a weave, one moment of contact. Points land on every named friend,\n" +
		"diluted for groups. Use --planned for something scheduled but not yet done.",
	Args: cobra.MinimumNArgs(1),
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logCategory, "category", "c", "", "deep_talk, hangout, activity, meal, call, message, celebration, or support")
	logCmd.Flags().StringVarP(&logKind, "kind", "k", "", "meetup, call, video, text, or letter")
	logCmd.Flags().IntVarP(&logVibe, "vibe", "v", 0, "How it felt, 1 (rough) to 5 (great)")
	logCmd.Flags().IntVarP(&logDuration, "duration", "d", 0, "Duration in minutes")
	logCmd.Flags().StringVar(&logInitiator, "initiator", "", "Who reached out: self, other, or mutual")
	logCmd.Flags().StringVar(&logImportance, "importance", "", "minor, notable, major, or milestone")
	logCmd.Flags().StringVarP(&logNotes, "notes", "n", "", "Freeform notes")
	logCmd.Flags().BoolVar(&logPlanned, "planned", false, "Record as planned, no points until it happens")
}

func runLog(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ids := make([]string, 0, len(args))
	for _, name := range args {
		f, err := db.GetFriendByName(name)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("no friend named %q", name)
		}
		ids = append(ids, f.ID)
	}

	status := store.WeaveCompleted
	if logPlanned {
		status = store.WeavePlanned
	}
	in := engine.WeaveInput{
		FriendIDs:   ids,
		Category:    logCategory,
		Kind:        logKind,
		DurationMin: logDuration,
		Vibe:        logVibe,
		Status:      status,
		Initiator:   logInitiator,
		Importance:  logImportance,
		Notes:       logNotes,
	}

	// Prefer a running server so its recompute worker sees the weave;
	// fall back to scoring directly against the database.
	c := client.New()
	if c.Healthy() {
		body, err := json.Marshal(in)
		if err != nil {
			return err
		}
		data, err := c.Post("/api/weaves", body)
		if err != nil {
			return err
		}
		var res engine.WeaveResult
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		printWeaveResult(&res)
		return nil
	}

	eng := engine.New(db, engine.DefaultConfig())
	res, err := eng.LogWeave(context.Background(), in)
	if err != nil {
		return err
	}
	printWeaveResult(res)
	return nil
}

func printWeaveResult(res *engine.WeaveResult) {
	for _, a := range res.Awards {
		if res.Status == store.WeavePlanned {
			fmt.Printf("%s: planned, no points until it happens\n", a.Name)
			continue
		}
		line := fmt.Sprintf("%s: +%.1f, now %.1f", a.Name, a.Delta, a.NewScore)
		if a.FulfilledIntention != "" {
			line += " (intention fulfilled)"
		}
		if a.WokeDormant {
			line += " (woke from dormancy)"
		}
		fmt.Println(line)
	}
}
