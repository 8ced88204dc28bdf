package main

import (
	"context"
	"fmt"

	"promoHub/business/eligibility"
	"promoHub/domain"
	"promoHub/pkg/config"
	"promoHub/pkg/logger"
)

type (
	seedPools interface {
		Upsert(ctx context.Context, pool *domain.Pool) error
	}

	seedUnits interface {
		Upsert(ctx context.Context, unit *domain.RewardUnit) error
	}

	seedPrincipals interface {
		Upsert(ctx context.Context, p *domain.Principal) error
	}

	seedTx interface {
		WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}
)

// applySeed writes the catalogue in one transaction. Re-running it updates
// rules and weights but keeps consumed stock.
func applySeed(ctx context.Context, seed config.Seed, tx seedTx, pools seedPools, units seedUnits, principals seedPrincipals) error {
	return tx.WithinTransaction(ctx, func(ctx context.Context) error {
		poolIDs := make(map[string]uint, len(seed.Pools))
		for _, ps := range seed.Pools {
			pool := ps.Pool()
			period, err := eligibility.ResolvePeriod(pool.PeriodKey)
			if err != nil {
				return fmt.Errorf("pool %q: %w", pool.Name, err)
			}
			pool.PeriodKey = string(period)

			if err := pools.Upsert(ctx, &pool); err != nil {
				return err
			}
			poolIDs[pool.Name] = pool.ID
		}

		// units go in after every pool so ticket_pool can point forward
		for _, ps := range seed.Pools {
			poolID := poolIDs[ps.Name]
			for _, us := range ps.Units {
				unit := us.Unit(poolID, poolIDs)
				if err := units.Upsert(ctx, &unit); err != nil {
					return err
				}
			}
			logger.Info("Seeded pool", "pool_id", poolID, "name", ps.Name, "units", len(ps.Units))
		}

		for _, p := range seed.Principals {
			principal := p.Principal()
			if err := principals.Upsert(ctx, &principal); err != nil {
				return err
			}
		}
		return nil
	})
}
