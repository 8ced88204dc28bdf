package selector

import (
	"math"

	"promoHub/domain"
)

type Selector struct {
	src Source
}

// New returns a selector drawing from src, or from a crypto-seeded source
// when src is nil.
func New(src Source) *Selector {
	if src == nil {
		src = NewSource()
	}
	return &Selector{src: src}
}

// Available returns the units that still have stock, in their given order.
func Available(candidates []domain.RewardUnit) []domain.RewardUnit {
	out := make([]domain.RewardUnit, 0, len(candidates))
	for _, u := range candidates {
		if u.HasStock() {
			out = append(out, u)
		}
	}
	return out
}

// Select draws one unit with probability proportional to its weight among
// units with stock. Units with zero or negative weight never win. Returns
// nil when nothing can be drawn.
func (s *Selector) Select(candidates []domain.RewardUnit) *domain.RewardUnit {
	var (
		pool []domain.RewardUnit
		sum  float64
	)
	for _, u := range Available(candidates) {
		if u.Weight > 0 {
			pool = append(pool, u)
			sum += u.Weight
		}
	}
	if len(pool) == 0 || sum <= 0 {
		return nil
	}

	r := s.src.Float64() * sum
	for i := range pool {
		r -= pool[i].Weight
		if r <= 0 {
			return &pool[i]
		}
	}

	// floating point residue
	return &pool[len(pool)-1]
}

// SelectAlternative picks the fallback unit when the drawn one ran out at
// consumption time. Preference: a flagged consolation unit, then a NO_WIN
// unit, then the cheapest credit or points unit, then the first unit with
// any stock.
func (s *Selector) SelectAlternative(candidates []domain.RewardUnit) *domain.RewardUnit {
	avail := Available(candidates)
	if len(avail) == 0 {
		return nil
	}

	for i := range avail {
		if avail[i].IsConsolation {
			return &avail[i]
		}
	}

	for i := range avail {
		if avail[i].Type == domain.RewardNoWin {
			return &avail[i]
		}
	}

	var cheapest *domain.RewardUnit
	for i := range avail {
		u := &avail[i]
		if u.Type != domain.RewardCredit && u.Type != domain.RewardPoints {
			continue
		}
		if cheapest == nil || u.Magnitude.LessThan(cheapest.Magnitude) {
			cheapest = u
		}
	}
	if cheapest != nil {
		return cheapest
	}

	return &avail[0]
}

// Odds is one row of the public probability table.
type Odds struct {
	UnitID    uint              `json:"unit_id"`
	Label     string            `json:"label"`
	Type      domain.RewardType `json:"type"`
	Magnitude string            `json:"magnitude"`
	Percent   float64           `json:"percent"`
	Remaining *int              `json:"remaining,omitempty"`
}

// OddsTable lists every candidate with its current chance of being drawn.
// Units without stock are listed at 0%.
func OddsTable(candidates []domain.RewardUnit) []Odds {
	var sum float64
	for _, u := range candidates {
		if u.HasStock() && u.Weight > 0 {
			sum += u.Weight
		}
	}

	out := make([]Odds, 0, len(candidates))
	for _, u := range candidates {
		pct := 0.0
		if sum > 0 && u.HasStock() && u.Weight > 0 {
			pct = math.Round(u.Weight/sum*10000) / 100
		}
		out = append(out, Odds{
			UnitID:    u.ID,
			Label:     u.Label,
			Type:      u.Type,
			Magnitude: u.Magnitude.StringFixed(2),
			Percent:   pct,
			Remaining: u.Remaining(),
		})
	}
	return out
}
