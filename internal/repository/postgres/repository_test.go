package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"promoHub/domain"
	"promoHub/pkg/database"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_") + "_" + uuid.NewString()[:8]
	db, err := database.OpenInMemory(name)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestTranslateError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"lock timeout", &pgconn.PgError{Code: pgLockNotAvailable}, true},
		{"serialization", &pgconn.PgError{Code: pgSerializationFailure}, true},
		{"deadlock", &pgconn.PgError{Code: pgDeadlockDetected}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translateError(tc.err)
			if errors.Is(got, domain.ErrTransient) != tc.transient {
				t.Fatalf("translateError(%v) = %v, transient want %v", tc.err, got, tc.transient)
			}
			if tc.err != nil && !errors.Is(got, tc.err) {
				t.Fatalf("cause lost: %v", got)
			}
		})
	}
}

func TestWithinTransactionJoinsOuter(t *testing.T) {
	db := openTestDB(t)
	txm := NewTxManager(db, time.Second)
	pools := NewPoolRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := txm.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := pools.Upsert(ctx, &domain.Pool{Name: "outer", Kind: domain.PoolKindWheel, PeriodKey: "DAILY", Active: true, Version: 1}); err != nil {
			return err
		}
		return txm.WithinTransaction(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	list, err := pools.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("pools = %+v, want rollback", list)
	}
}

func TestAttemptRowsAreImmutable(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	a := &domain.AllocationAttempt{
		PrincipalID: 1,
		PoolID:      1,
		RewardType:  domain.RewardNoWin,
		Magnitude:   decimal.Zero,
		Outcome:     domain.OutcomeAllocated,
		Reference:   uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Append(ctx, a); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := db.Model(a).Update("outcome", domain.OutcomeRejected).Error
	if !errors.Is(err, domain.ErrAttemptImmutable) {
		t.Fatalf("update err = %v", err)
	}
}

func TestAttemptCountsSkipRejections(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	for i, outcome := range []domain.AttemptOutcome{
		domain.OutcomeAllocated, domain.OutcomeConflict, domain.OutcomeRejected, domain.OutcomeRejected,
	} {
		err := repo.Append(ctx, &domain.AllocationAttempt{
			PrincipalID: 1,
			PoolID:      2,
			RewardType:  domain.RewardNoWin,
			Magnitude:   decimal.Zero,
			Outcome:     outcome,
			Reference:   uuid.NewString(),
			CreatedAt:   now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := repo.CountForPrincipal(ctx, 1, 2, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	last, err := repo.LastForPrincipal(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Outcome != domain.OutcomeConflict {
		t.Fatalf("last = %+v", last)
	}

	later, err := repo.CountForPool(ctx, 2, now.Add(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if later != 1 {
		t.Fatalf("pool count since = %d, want 1", later)
	}
}

func TestUnitDeleteGuardsConsumedStock(t *testing.T) {
	db := openTestDB(t)
	units := NewRewardUnitRepository(db)
	ctx := context.Background()

	capacity := 3
	u := &domain.RewardUnit{PoolID: 1, Label: "cash", Type: domain.RewardCash, Magnitude: decimal.NewFromInt(1), Weight: 1, Capacity: &capacity}
	if err := units.Upsert(ctx, u); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ok, err := units.Consume(ctx, u.ID)
	if err != nil || !ok {
		t.Fatalf("consume = %v, %v", ok, err)
	}

	list, err := units.ListByPool(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := units.Delete(ctx, &list[0]); !errors.Is(err, domain.ErrUnitPartiallyConsumed) {
		t.Fatalf("delete err = %v", err)
	}
}

func TestConsumeStopsAtCapacity(t *testing.T) {
	db := openTestDB(t)
	units := NewRewardUnitRepository(db)
	ctx := context.Background()

	capacity := 2
	u := &domain.RewardUnit{PoolID: 1, Label: "two", Type: domain.RewardPoints, Magnitude: decimal.NewFromInt(1), Weight: 1, Capacity: &capacity}
	if err := units.Upsert(ctx, u); err != nil {
		t.Fatal(err)
	}

	var taken int
	for range 5 {
		ok, err := units.Consume(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			taken++
		}
	}
	if taken != 2 {
		t.Fatalf("taken = %d, want 2", taken)
	}

	// re-seeding keeps consumed stock
	u.Weight = 5
	if err := units.Upsert(ctx, u); err != nil {
		t.Fatal(err)
	}
	list, _ := units.ListByPool(ctx, 1)
	if list[0].Consumed != 2 || list[0].Weight != 5 {
		t.Fatalf("unit = %+v", list[0])
	}
}

func TestBonusGrantMarkUsedOnce(t *testing.T) {
	db := openTestDB(t)
	grants := NewBonusGrantRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	g := &domain.BonusGrant{PrincipalID: 1, PoolID: 1, ExpiresAt: now.Add(time.Hour)}
	if err := grants.Grant(ctx, g); err != nil {
		t.Fatal(err)
	}
	expired := &domain.BonusGrant{PrincipalID: 1, PoolID: 1, ExpiresAt: now.Add(-time.Hour)}
	if err := grants.Grant(ctx, expired); err != nil {
		t.Fatal(err)
	}

	active, err := grants.ActiveGrants(ctx, 1, 1, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != g.ID {
		t.Fatalf("active = %+v", active)
	}

	ok, err := grants.MarkUsed(ctx, g.ID, 9, now)
	if err != nil || !ok {
		t.Fatalf("mark = %v, %v", ok, err)
	}
	ok, err = grants.MarkUsed(ctx, g.ID, 10, now)
	if err != nil || ok {
		t.Fatalf("second mark = %v, %v", ok, err)
	}
}
