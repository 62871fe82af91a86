package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tendhq/tend/internal/engine"
	"github.com/tendhq/tend/internal/store"
)

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := s.buildDigest(r.Context())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"digest": digest,
	})
}

// buildDigest renders the network as a short markdown briefing: overall
// health, who needs attention soon, open intentions, and dormant friends.
// Sections with nothing to say are omitted.
func (s *Server) buildDigest(ctx context.Context) (string, error) {
	var b strings.Builder

	b.WriteString("## Tend — Network Digest\n")

	nf, err := s.engine.Forecast(7)
	if err != nil {
		return "", err
	}
	b.WriteString(fmt.Sprintf("\nNetwork health %.0f now, %.0f in %d days.\n",
		nf.CurrentHealth, nf.ForecastedHealth, nf.DaysAhead))

	friends, err := s.db.ListFriends()
	if err != nil {
		return "", err
	}
	names := make(map[string]string, len(friends))
	for _, f := range friends {
		names[f.ID] = f.Name
	}

	// Most urgent first, cap the list so the digest stays scannable.
	const maxDigestItems = 10

	drifts, err := s.engine.AttentionList(ctx)
	if err != nil {
		return "", err
	}
	var urgent []engine.Drift
	for _, d := range drifts {
		if d.Urgency == engine.UrgencyLow {
			continue
		}
		urgent = append(urgent, d)
	}
	if len(urgent) > maxDigestItems {
		urgent = urgent[:maxDigestItems]
	}
	if len(urgent) > 0 {
		b.WriteString("\n### Needs Attention\n")
		for _, d := range urgent {
			b.WriteString(fmt.Sprintf("- %s (%s): %s\n", d.Name, d.Tier, driftLine(d)))
		}
	}

	intentions, err := s.db.ListIntentions("", store.IntentionOpen)
	if err != nil {
		return "", err
	}
	if len(intentions) > 0 {
		b.WriteString("\n### Open Intentions\n")
		for _, it := range intentions {
			line := "- " + names[it.FriendID]
			if it.Category != "" {
				line += ": " + it.Category
			}
			if it.DueAt != nil {
				line += " (due " + time.UnixMilli(*it.DueAt).Format("Jan 2") + ")"
			}
			b.WriteString(line + "\n")
		}
	}

	var dormant []store.Friend
	for _, f := range friends {
		if f.IsDormant {
			dormant = append(dormant, f)
		}
	}
	if len(dormant) > 0 {
		b.WriteString("\n### Dormant\n")
		for _, f := range dormant {
			line := "- " + f.Name
			if f.DormantSince != nil {
				line += " since " + time.UnixMilli(*f.DormantSince).Format("Jan 2")
			}
			b.WriteString(line + "\n")
		}
	}

	return b.String(), nil
}

func driftLine(d engine.Drift) string {
	if d.DaysUntilAttention <= 0 {
		return fmt.Sprintf("below threshold now at %.0f", d.CurrentScore)
	}
	return fmt.Sprintf("%d days of runway at %.0f", d.DaysUntilAttention, d.CurrentScore)
}
