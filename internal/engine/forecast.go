package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendhq/tend/internal/store"
)

// Urgency labels for drift predictions.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

// Drift predicts when a friend will need attention if nothing is
// logged.
type Drift struct {
	FriendID           string  `json:"friend_id"`
	Name               string  `json:"name"`
	Tier               string  `json:"tier"`
	CurrentScore       float64 `json:"current_score"`
	PredictedScore     float64 `json:"predicted_score"`
	DaysUntilAttention int     `json:"days_until_attention"`
	Confidence         float64 `json:"confidence"`
	Urgency            string  `json:"urgency"`
}

// PredictDrift simulates a friend's decay day by day until their score
// crosses the tier's attention threshold. Already at or below the
// threshold means attention is needed now.
func PredictDrift(cfg Config, f *store.Friend, p Pattern, now time.Time) Drift {
	tier := cfg.TierOf(f.Tier)
	cur := CurrentScore(cfg, f, now)

	d := Drift{
		FriendID:     f.ID,
		Name:         f.Name,
		Tier:         f.Tier,
		CurrentScore: cur,
	}

	if cur <= tier.AttentionThreshold {
		d.PredictedScore = cur
		d.DaysUntilAttention = 0
		d.Confidence = 1.0
		if f.Tier == store.TierInnerCircle {
			d.Urgency = UrgencyCritical
		} else {
			d.Urgency = UrgencyHigh
		}
		return d
	}

	elapsed := daysSince(f.LastUpdated, now)
	window := toleranceDays(cfg, f)

	days := cfg.ForecastHorizonDays
	predicted := cur
	for day := 1; day <= cfg.ForecastHorizonDays; day++ {
		score := clampScore(f.StoredScore - decayOver(cfg, tier, f.Resilience, window, elapsed+float64(day)))
		if score <= tier.AttentionThreshold {
			days = day
			predicted = score
			break
		}
		predicted = score
	}

	d.DaysUntilAttention = days
	d.PredictedScore = predicted
	d.Confidence = driftConfidence(cfg, p)
	d.Urgency = urgencyFor(days)
	return d
}

// driftConfidence grounds the prediction in how regular the friendship
// actually is. Without a reliable sample the base confidence stands.
func driftConfidence(cfg Config, p Pattern) float64 {
	c := 0.7
	if p.SampleSize >= cfg.PatternMinSamples {
		c += 0.25 * p.Consistency
	}
	if c > 0.95 {
		c = 0.95
	}
	return c
}

func urgencyFor(days int) string {
	switch {
	case days <= 2:
		return UrgencyCritical
	case days <= 5:
		return UrgencyHigh
	case days <= 10:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// FriendOutlook is one friend's row in a network forecast.
type FriendOutlook struct {
	FriendID           string  `json:"friend_id"`
	Name               string  `json:"name"`
	Tier               string  `json:"tier"`
	CurrentScore       float64 `json:"current_score"`
	ForecastedScore    float64 `json:"forecasted_score"`
	DaysUntilAttention int     `json:"days_until_attention"`
}

// NetworkForecast projects the whole network daysAhead into the future.
type NetworkForecast struct {
	DaysAhead        int             `json:"days_ahead"`
	CurrentHealth    float64         `json:"current_health"`
	ForecastedHealth float64         `json:"forecasted_health"`
	NeedingAttention []FriendOutlook `json:"needing_attention"`
	Confidence       float64         `json:"confidence"`
}

// ForecastNetwork computes tier-weighted network health now and at
// daysAhead, plus the friends who will cross their attention threshold
// in that span. The projection uses each friend's flat base rate:
// future tolerance crossings are unknowable, so no regime switching.
func ForecastNetwork(cfg Config, friends []store.Friend, daysAhead int, now time.Time) NetworkForecast {
	if daysAhead < 0 {
		daysAhead = 0
	}

	nf := NetworkForecast{DaysAhead: daysAhead}

	var weightSum, curSum, fcSum float64
	for i := range friends {
		f := &friends[i]
		tier := cfg.TierOf(f.Tier)

		resilience := f.Resilience
		if resilience <= 0 {
			resilience = 1.0
		}
		rate := tier.DecayPerDay / resilience

		cur := CurrentScore(cfg, f, now)
		forecasted := clampScore(cur - rate*float64(daysAhead))

		weightSum += tier.Weight
		curSum += tier.Weight * cur
		fcSum += tier.Weight * forecasted

		crossing := 0
		if cur > tier.AttentionThreshold {
			if rate <= 0 {
				continue
			}
			crossing = int(math.Ceil((cur - tier.AttentionThreshold) / rate))
		}
		if crossing <= daysAhead {
			nf.NeedingAttention = append(nf.NeedingAttention, FriendOutlook{
				FriendID:           f.ID,
				Name:               f.Name,
				Tier:               f.Tier,
				CurrentScore:       cur,
				ForecastedScore:    forecasted,
				DaysUntilAttention: crossing,
			})
		}
	}

	if weightSum > 0 {
		nf.CurrentHealth = curSum / weightSum
		nf.ForecastedHealth = fcSum / weightSum
	}

	sort.Slice(nf.NeedingAttention, func(i, j int) bool {
		a, b := nf.NeedingAttention[i], nf.NeedingAttention[j]
		if a.DaysUntilAttention != b.DaysUntilAttention {
			return a.DaysUntilAttention < b.DaysUntilAttention
		}
		if a.CurrentScore != b.CurrentScore {
			return a.CurrentScore < b.CurrentScore
		}
		return a.Name < b.Name
	})

	confidence := 1 - 0.5*float64(daysAhead)/30
	if confidence < 0.3 {
		confidence = 0.3
	}
	nf.Confidence = confidence
	return nf
}

// Drift loads a friend's history and predicts their drift.
func (e *Engine) Drift(friendID string) (*Drift, error) {
	f, err := e.DB.GetFriend(friendID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}

	history, err := e.DB.FriendWeaveHistory(friendID)
	if err != nil {
		return nil, err
	}

	d := PredictDrift(e.cfg, f, AnalyzePattern(e.cfg, history), e.now())
	return &d, nil
}

// Forecast projects the whole network daysAhead days out.
func (e *Engine) Forecast(daysAhead int) (*NetworkForecast, error) {
	friends, err := e.DB.ListFriends()
	if err != nil {
		return nil, err
	}
	nf := ForecastNetwork(e.cfg, friends, daysAhead, e.now())
	return &nf, nil
}

// AttentionList predicts drift for every friend, most urgent first.
// History loads fan out across a bounded worker pool.
func (e *Engine) AttentionList(ctx context.Context) ([]Drift, error) {
	friends, err := e.DB.ListFriends()
	if err != nil {
		return nil, err
	}
	if len(friends) == 0 {
		return nil, nil
	}

	now := e.now()
	drifts := make([]Drift, len(friends))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range friends {
		i := i
		g.Go(func() error {
			f := &friends[i]
			history, err := e.DB.FriendWeaveHistory(f.ID)
			if err != nil {
				return err
			}
			drifts[i] = PredictDrift(e.cfg, f, AnalyzePattern(e.cfg, history), now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(drifts, func(i, j int) bool {
		if drifts[i].DaysUntilAttention != drifts[j].DaysUntilAttention {
			return drifts[i].DaysUntilAttention < drifts[j].DaysUntilAttention
		}
		if drifts[i].CurrentScore != drifts[j].CurrentScore {
			return drifts[i].CurrentScore < drifts[j].CurrentScore
		}
		return drifts[i].Name < drifts[j].Name
	})
	return drifts, nil
}
