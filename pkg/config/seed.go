package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"promoHub/domain"
)

// UnitSeed is one prize. TicketPool names the instant-win pool that a
// FREE_TICKET prize enters.
type UnitSeed struct {
	Label            string  `yaml:"label"`
	Type             string  `yaml:"type"`
	Magnitude        string  `yaml:"magnitude"`
	Weight           float64 `yaml:"weight"`
	Capacity         *int    `yaml:"capacity"`
	Consolation      bool    `yaml:"consolation"`
	TicketNumber     *int64  `yaml:"ticket_number"`
	TicketPool       string  `yaml:"ticket_pool"`
	BonusExpiryHours int     `yaml:"bonus_expiry_hours"`
}

type PoolSeed struct {
	Name          string     `yaml:"name"`
	Kind          string     `yaml:"kind"`
	Period        string     `yaml:"period"`
	PerUserLimit  int        `yaml:"per_user_limit"`
	GlobalLimit   *int       `yaml:"global_limit"`
	CooldownHours int        `yaml:"cooldown_hours"`
	MinTier       int        `yaml:"min_tier"`
	Active        *bool      `yaml:"active"`
	StartsAt      *time.Time `yaml:"starts_at"`
	EndsAt        *time.Time `yaml:"ends_at"`
	Units         []UnitSeed `yaml:"units"`
}

type PrincipalSeed struct {
	Handle string `yaml:"handle"`
	Tier   int    `yaml:"tier"`
	Role   string `yaml:"role"`
}

// Seed is the boot-time catalogue of pools, units and principals.
type Seed struct {
	Pools      []PoolSeed      `yaml:"pools"`
	Principals []PrincipalSeed `yaml:"principals"`
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read pool seed: %w", err)
	}

	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse pool seed: %w", err)
	}

	kinds := make(map[string]domain.PoolKind, len(seed.Pools))
	for i, p := range seed.Pools {
		if p.Name == "" {
			return Seed{}, fmt.Errorf("pool #%d: missing name", i)
		}
		kind := p.kind()
		if !kind.Valid() {
			return Seed{}, fmt.Errorf("pool %q: unknown kind %q", p.Name, p.Kind)
		}
		kinds[p.Name] = kind
	}

	for _, p := range seed.Pools {
		for _, u := range p.Units {
			if err := u.validate(p, kinds); err != nil {
				return Seed{}, fmt.Errorf("pool %q unit %q: %w", p.Name, u.Label, err)
			}
		}
	}

	return seed, nil
}

// Pool converts the seed into a pool model. Period is copied verbatim and
// resolved by the eligibility rules when the pool is evaluated.
func (p PoolSeed) Pool() domain.Pool {
	active := true
	if p.Active != nil {
		active = *p.Active
	}

	return domain.Pool{
		Name:          p.Name,
		Kind:          p.kind(),
		PeriodKey:     p.Period,
		PerUserLimit:  p.PerUserLimit,
		GlobalLimit:   p.GlobalLimit,
		CooldownHours: p.CooldownHours,
		MinTier:       p.MinTier,
		Active:        active,
		Version:       1,
		StartsAt:      p.StartsAt,
		EndsAt:        p.EndsAt,
	}
}

func (p PoolSeed) kind() domain.PoolKind {
	if p.Kind == "" {
		return domain.PoolKindWheel
	}
	return domain.PoolKind(strings.ToUpper(p.Kind))
}

func (u UnitSeed) validate(pool PoolSeed, kinds map[string]domain.PoolKind) error {
	typ := domain.RewardType(u.Type)
	if !typ.Valid() {
		return fmt.Errorf("unknown reward type %q", u.Type)
	}
	if u.Weight < 0 {
		return errors.New("negative weight")
	}

	magnitude := decimal.Zero
	if u.Magnitude != "" {
		m, err := decimal.NewFromString(u.Magnitude)
		if err != nil {
			return fmt.Errorf("invalid magnitude: %w", err)
		}
		magnitude = m
	}
	if typ.Credits() && !magnitude.Round(2).IsPositive() {
		return fmt.Errorf("%s prize needs a positive magnitude", typ)
	}

	if u.TicketPool != "" {
		if typ != domain.RewardFreeTicket {
			return errors.New("ticket_pool is only valid on FREE_TICKET units")
		}
		kind, ok := kinds[u.TicketPool]
		if !ok {
			return fmt.Errorf("ticket_pool %q is not in the seed", u.TicketPool)
		}
		if kind != domain.PoolKindInstantWin {
			return fmt.Errorf("ticket_pool %q is not an INSTANT_WIN pool", u.TicketPool)
		}
	} else if typ == domain.RewardFreeTicket && pool.kind() != domain.PoolKindInstantWin {
		return errors.New("FREE_TICKET prize on a wheel needs a ticket_pool")
	}
	return nil
}

// Unit converts the seed into a unit of poolID. poolIDs maps seeded pool
// names to their stored ids and resolves ticket_pool.
func (u UnitSeed) Unit(poolID uint, poolIDs map[string]uint) domain.RewardUnit {
	magnitude := decimal.Zero
	if u.Magnitude != "" {
		magnitude = decimal.RequireFromString(u.Magnitude)
	}

	var ticketPoolID *uint
	if id, ok := poolIDs[u.TicketPool]; ok && u.TicketPool != "" {
		ticketPoolID = &id
	}

	return domain.RewardUnit{
		PoolID:           poolID,
		Label:            u.Label,
		Type:             domain.RewardType(u.Type),
		Magnitude:        magnitude,
		Weight:           u.Weight,
		Capacity:         u.Capacity,
		IsConsolation:    u.Consolation,
		TicketNumber:     u.TicketNumber,
		TicketPoolID:     ticketPoolID,
		BonusExpiryHours: u.BonusExpiryHours,
	}
}

func (p PrincipalSeed) Principal() domain.Principal {
	role := p.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	return domain.Principal{Handle: p.Handle, Tier: p.Tier, Role: role}
}
