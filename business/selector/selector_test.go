package selector

import (
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"promoHub/domain"
)

func unit(id uint, weight float64, capacity *int, consumed int) domain.RewardUnit {
	return domain.RewardUnit{
		ID:        id,
		Label:     "u",
		Type:      domain.RewardCredit,
		Magnitude: decimal.NewFromInt(int64(id)),
		Weight:    weight,
		Capacity:  capacity,
		Consumed:  consumed,
	}
}

func intPtr(n int) *int { return &n }

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestSelectWeightedFairness(t *testing.T) {
	sel := New(NewSeededSource(42))
	candidates := []domain.RewardUnit{
		unit(1, 70, nil, 0),
		unit(2, 20, nil, 0),
		unit(3, 10, nil, 0),
	}

	const draws = 100000
	counts := map[uint]int{}
	for i := 0; i < draws; i++ {
		counts[sel.Select(candidates).ID]++
	}

	want := map[uint]float64{1: 0.70, 2: 0.20, 3: 0.10}
	for id, p := range want {
		got := float64(counts[id]) / draws
		// ~5 standard deviations at n=100k
		tol := 5 * math.Sqrt(p*(1-p)/draws)
		if math.Abs(got-p) > tol {
			t.Errorf("unit %d frequency %.4f, want %.2f ± %.4f", id, got, p, tol)
		}
	}
}

func TestSelectSkipsExhaustedAndZeroWeight(t *testing.T) {
	sel := New(NewSeededSource(1))
	candidates := []domain.RewardUnit{
		unit(1, 90, intPtr(1), 1),
		unit(2, 0, nil, 0),
		unit(3, 10, nil, 0),
	}

	for i := 0; i < 1000; i++ {
		if got := sel.Select(candidates); got == nil || got.ID != 3 {
			t.Fatalf("draw %d: expected unit 3, got %+v", i, got)
		}
	}
}

func TestSelectSkipsClaimedInstantWin(t *testing.T) {
	claimer := uint(5)
	n := int64(12)
	claimed := unit(1, 50, intPtr(1), 0)
	claimed.TicketNumber = &n
	claimed.ClaimedBy = &claimer

	got := New(fixedSource(0)).Select([]domain.RewardUnit{claimed, unit(2, 50, nil, 0)})
	if got == nil || got.ID != 2 {
		t.Fatalf("expected unit 2, got %+v", got)
	}
}

func TestSelectBoundaries(t *testing.T) {
	candidates := []domain.RewardUnit{unit(1, 1, nil, 0), unit(2, 1, nil, 0)}

	if got := New(fixedSource(0)).Select(candidates); got.ID != 1 {
		t.Errorf("r=0 picked %d", got.ID)
	}
	if got := New(fixedSource(0.9999999999)).Select(candidates); got.ID != 2 {
		t.Errorf("r≈1 picked %d", got.ID)
	}
}

func TestSelectEmpty(t *testing.T) {
	sel := New(fixedSource(0.5))
	if got := sel.Select(nil); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	if got := sel.Select([]domain.RewardUnit{unit(1, 0, nil, 0), unit(2, 5, intPtr(0), 0)}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestSelectAlternativePreferences(t *testing.T) {
	sel := New(fixedSource(0))

	cash := unit(1, 50, nil, 0)
	cash.Type = domain.RewardCash
	bigCredit := unit(9, 10, nil, 0)
	smallCredit := unit(4, 10, nil, 0)
	noWin := unit(5, 10, nil, 0)
	noWin.Type = domain.RewardNoWin
	consolation := unit(7, 0, nil, 0)
	consolation.IsConsolation = true
	emptyConsolation := unit(8, 0, intPtr(2), 2)
	emptyConsolation.IsConsolation = true

	cases := []struct {
		name       string
		candidates []domain.RewardUnit
		want       uint
	}{
		{"flagged consolation", []domain.RewardUnit{cash, bigCredit, noWin, consolation}, 7},
		{"exhausted consolation skipped", []domain.RewardUnit{cash, emptyConsolation, noWin}, 5},
		{"cheapest credit", []domain.RewardUnit{cash, bigCredit, smallCredit}, 4},
		{"first with stock", []domain.RewardUnit{unit(3, 0, intPtr(0), 0), cash}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sel.SelectAlternative(tc.candidates)
			if got == nil || got.ID != tc.want {
				t.Fatalf("got %+v, want unit %d", got, tc.want)
			}
		})
	}

	if got := sel.SelectAlternative([]domain.RewardUnit{emptyConsolation}); got != nil {
		t.Fatalf("expected nil when nothing has stock, got %+v", got)
	}
}

func TestSelectorConcurrentUse(t *testing.T) {
	sel := New(nil)
	candidates := []domain.RewardUnit{unit(1, 1, nil, 0), unit(2, 3, nil, 0)}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if sel.Select(candidates) == nil {
					t.Error("unexpected nil draw")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestOddsTable(t *testing.T) {
	odds := OddsTable([]domain.RewardUnit{
		unit(1, 2, nil, 0),
		unit(2, 1, intPtr(3), 1),
		unit(3, 5, intPtr(1), 1),
	})

	if odds[0].Percent != 66.67 || odds[1].Percent != 33.33 || odds[2].Percent != 0 {
		t.Fatalf("unexpected percentages: %+v", odds)
	}
	if odds[1].Remaining == nil || *odds[1].Remaining != 2 {
		t.Fatalf("unexpected remaining: %+v", odds[1].Remaining)
	}
	if odds[0].Remaining != nil {
		t.Fatal("unlimited unit reported a remaining count")
	}
}
