package engine

import (
	"fmt"
	"strings"

	"github.com/tendhq/tend/internal/store"
)

// normalizeWeaveInput trims free text, defaults the status, and
// dedupes the friend list in place.
func normalizeWeaveInput(in *WeaveInput) {
	in.Category = strings.TrimSpace(in.Category)
	in.Kind = strings.TrimSpace(in.Kind)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Reflection = strings.TrimSpace(in.Reflection)
	if in.Status == "" {
		in.Status = store.WeaveCompleted
	}

	seen := make(map[string]bool, len(in.FriendIDs))
	kept := in.FriendIDs[:0]
	for _, id := range in.FriendIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, id)
	}
	in.FriendIDs = kept
}

// validateWeaveInput rejects weaves that cannot be scored. Friend
// existence is checked later against the store.
func validateWeaveInput(cfg Config, in *WeaveInput) error {
	if len(in.FriendIDs) == 0 {
		return fmt.Errorf("weave needs at least one friend")
	}
	if in.Status != store.WeaveCompleted && in.Status != store.WeavePlanned {
		return fmt.Errorf("invalid status %q", in.Status)
	}
	if in.Category == "" && in.Kind == "" {
		return fmt.Errorf("weave needs a category or a kind")
	}
	if in.Category != "" && !cfg.KnownCategory(in.Category) {
		return fmt.Errorf("unknown category %q", in.Category)
	}
	if in.Kind != "" && !cfg.KnownKind(in.Kind) {
		return fmt.Errorf("unknown kind %q", in.Kind)
	}
	if in.Vibe < 0 || in.Vibe > 5 {
		return fmt.Errorf("vibe %d out of range 0-5", in.Vibe)
	}
	if in.DurationMin < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	switch in.Initiator {
	case "", store.InitiatorSelf, store.InitiatorOther, store.InitiatorMutual:
	default:
		return fmt.Errorf("invalid initiator %q", in.Initiator)
	}
	if in.Importance != "" {
		if _, ok := cfg.ImportanceMultipliers[in.Importance]; !ok {
			return fmt.Errorf("unknown importance %q", in.Importance)
		}
	}
	return nil
}
