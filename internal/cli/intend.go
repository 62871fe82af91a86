package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendhq/tend/internal/engine"
	"github.com/tendhq/tend/internal/store"
)

var (
	intendCategory string
	intendNote     string
	intendDue      string
)

var intendCmd = &cobra.Command{
	Use:   "intend [friend]",
	Short: "Declare an intention to reconnect",
	Long: "Declare that you mean to reach out. An open intention shields the friend\n" +
		"from dormancy, and the next completed weave with them fulfills it for a\n" +
		"follow-through bonus.",
	Args: cobra.MinimumNArgs(1),
	RunE: runIntend,
}

func init() {
	intendCmd.Flags().StringVarP(&intendCategory, "category", "c", "", "What you have in mind: deep_talk, meal, call, ...")
	intendCmd.Flags().StringVarP(&intendNote, "note", "n", "", "Freeform note")
	intendCmd.Flags().StringVar(&intendDue, "due", "", "Due date, YYYY-MM-DD")
}

func runIntend(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")

	if intendCategory != "" && !engine.DefaultConfig().KnownCategory(intendCategory) {
		return fmt.Errorf("unknown category %q", intendCategory)
	}
	var dueAt *int64
	if intendDue != "" {
		day, err := time.Parse("2006-01-02", intendDue)
		if err != nil {
			return fmt.Errorf("parse due date: %w", err)
		}
		ms := day.UnixMilli()
		dueAt = &ms
	}

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

	it := &store.Intention{FriendID: f.ID, Category: intendCategory, Note: intendNote, DueAt: dueAt}
	if err := db.CreateIntention(it); err != nil {
		return err
	}

	fmt.Printf("intention set for %s", f.Name)
	if intendCategory != "" {
		fmt.Printf(": %s", intendCategory)
	}
	if dueAt != nil {
		fmt.Printf(" (due %s)", intendDue)
	}
	fmt.Println()
	fmt.Printf("while it stays open, %s won't go dormant\n", f.Name)
	return nil
}
