package config

import (
	"strings"
	"testing"

	"promoHub/domain"
)

const sampleSeed = `
pools:
  - name: daily-wheel
    period: day
    per_user_limit: 1
    units:
      - label: grand
        type: CASH
        magnitude: "100.00"
        weight: 90
        capacity: 0
      - label: consolation
        type: SITE_CREDIT
        magnitude: "1"
        weight: 10
        consolation: true
  - name: scratch
    kind: INSTANT_WIN
    active: false
principals:
  - handle: alice
    tier: 2
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(sampleSeed))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}

	if len(seed.Pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(seed.Pools))
	}

	wheel := seed.Pools[0].Pool()
	if wheel.Kind != domain.PoolKindWheel || !wheel.Active || wheel.PeriodKey != "day" {
		t.Fatalf("unexpected wheel pool: %+v", wheel)
	}

	grand := seed.Pools[0].Units[0].Unit(7, nil)
	if grand.PoolID != 7 || grand.Capacity == nil || *grand.Capacity != 0 {
		t.Fatalf("unexpected grand unit: %+v", grand)
	}
	if grand.Magnitude.String() != "100" {
		t.Fatalf("unexpected magnitude %s", grand.Magnitude)
	}

	if !seed.Pools[0].Units[1].Unit(7, nil).IsConsolation {
		t.Fatal("consolation flag lost")
	}

	scratch := seed.Pools[1].Pool()
	if scratch.Active || scratch.Kind != domain.PoolKindInstantWin {
		t.Fatalf("unexpected scratch pool: %+v", scratch)
	}

	p := seed.Principals[0].Principal()
	if p.Role != domain.RoleCustomer || p.Tier != 2 {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestParseSeedRejectsUnknownRewardType(t *testing.T) {
	_, err := ParseSeed([]byte(`
pools:
  - name: broken
    units:
      - label: x
        type: JACKPOT
        weight: 1
`))
	if err == nil || !strings.Contains(err.Error(), "unknown reward type") {
		t.Fatalf("expected reward type error, got %v", err)
	}
}

func TestParseSeedRejectsBadMagnitude(t *testing.T) {
	_, err := ParseSeed([]byte(`
pools:
  - name: broken
    units:
      - label: x
        type: CASH
        magnitude: ten
        weight: 1
`))
	if err == nil {
		t.Fatal("expected magnitude error")
	}
}

func TestUnitResolvesTicketPool(t *testing.T) {
	seed, err := ParseSeed([]byte(`
pools:
  - name: wheel
    units:
      - label: free entry
        type: FREE_TICKET
        magnitude: "2"
        weight: 5
        ticket_pool: scratch
  - name: scratch
    kind: instant_win
`))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}

	if kind := seed.Pools[1].Pool().Kind; kind != domain.PoolKindInstantWin {
		t.Fatalf("kind = %q, want INSTANT_WIN", kind)
	}

	unit := seed.Pools[0].Units[0].Unit(1, map[string]uint{"wheel": 1, "scratch": 2})
	if unit.TicketPoolID == nil || *unit.TicketPoolID != 2 {
		t.Fatalf("TicketPoolID = %v, want 2", unit.TicketPoolID)
	}
	if unit.Magnitude.IntPart() != 2 {
		t.Fatalf("ticket count = %s, want 2", unit.Magnitude)
	}
}

func TestParseSeedRejectsInvalidUnits(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "credit without magnitude",
			yaml: `
pools:
  - name: wheel
    units:
      - {label: x, type: SITE_CREDIT, weight: 1}
`,
			want: "positive magnitude",
		},
		{
			name: "cash rounding to zero",
			yaml: `
pools:
  - name: wheel
    units:
      - {label: x, type: CASH, magnitude: "0.004", weight: 1}
`,
			want: "positive magnitude",
		},
		{
			name: "negative points",
			yaml: `
pools:
  - name: wheel
    units:
      - {label: x, type: POINTS, magnitude: "-5", weight: 1}
`,
			want: "positive magnitude",
		},
		{
			name: "unknown pool kind",
			yaml: `
pools:
  - name: wheel
    kind: SLOTS
`,
			want: "unknown kind",
		},
		{
			name: "ticket pool missing",
			yaml: `
pools:
  - name: wheel
    units:
      - {label: x, type: FREE_TICKET, weight: 1, ticket_pool: nowhere}
`,
			want: "not in the seed",
		},
		{
			name: "ticket pool is a wheel",
			yaml: `
pools:
  - name: wheel
    units:
      - {label: x, type: FREE_TICKET, weight: 1, ticket_pool: other}
  - name: other
`,
			want: "not an INSTANT_WIN pool",
		},
		{
			name: "wheel ticket without pool",
			yaml: `
pools:
  - name: wheel
    units:
      - {label: x, type: FREE_TICKET, weight: 1}
`,
			want: "needs a ticket_pool",
		},
		{
			name: "ticket pool on a cash unit",
			yaml: `
pools:
  - name: wheel
    units:
      - {label: x, type: CASH, magnitude: "1", weight: 1, ticket_pool: scratch}
  - name: scratch
    kind: INSTANT_WIN
`,
			want: "only valid on FREE_TICKET",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestParseSeedAllowsTicketsInsideInstantWin(t *testing.T) {
	_, err := ParseSeed([]byte(`
pools:
  - name: scratch
    kind: INSTANT_WIN
    units:
      - {label: x, type: FREE_TICKET, weight: 1}
      - {label: y, type: NO_WIN, weight: 1}
`))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
}
