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
	friendsAddTier      string
	friendsAddArchetype string
)

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "Manage tracked friends",
}

var friendsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Track a new friend",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFriendsAdd,
}

var friendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List friends with live scores",
	RunE:  runFriendsList,
}

func init() {
	friendsAddCmd.Flags().StringVarP(&friendsAddTier, "tier", "t", store.TierCloseFriends,
		"inner_circle, close_friends, or community")
	friendsAddCmd.Flags().StringVarP(&friendsAddArchetype, "archetype", "a", "",
		"confidant, adventurer, thinker, neighbor, or kindred")
	friendsCmd.AddCommand(friendsAddCmd)
	friendsCmd.AddCommand(friendsListCmd)
}

func runFriendsAdd(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	if !store.ValidTier(friendsAddTier) {
		return fmt.Errorf("unknown tier %q", friendsAddTier)
	}
	if !store.ValidArchetype(friendsAddArchetype) {
		return fmt.Errorf("unknown archetype %q", friendsAddArchetype)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	f := &store.Friend{Name: name, Tier: friendsAddTier, Archetype: friendsAddArchetype}
	if err := db.CreateFriend(f); err != nil {
		return err
	}

	fmt.Printf("tracking %s (%s), starting at %.0f\n", f.Name, f.Tier, f.StoredScore)
	return nil
}

func runFriendsList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	friends, err := db.ListFriends()
	if err != nil {
		return err
	}
	if len(friends) == 0 {
		fmt.Println("No friends tracked yet. Add one with: tend friends add <name>")
		return nil
	}

	cfg := engine.DefaultConfig()
	now := time.Now()
	for i := range friends {
		f := &friends[i]
		note := ""
		if f.IsDormant {
			note = "  dormant"
		} else if engine.CurrentScore(cfg, f, now) <= cfg.TierOf(f.Tier).AttentionThreshold {
			note = "  needs attention"
		}
		fmt.Printf("%5.1f  %-24s %s%s\n", engine.DisplayScore(cfg, f, now), f.Name, f.Tier, note)
	}
	return nil
}
