package eligibility

import (
	"context"
	"testing"
	"time"

	"promoHub/domain"
)

type fakeLog struct {
	attempts []domain.AllocationAttempt
}

func (f *fakeLog) CountForPrincipal(ctx context.Context, principalID, poolID uint, since time.Time) (int64, error) {
	var n int64
	for _, a := range f.attempts {
		if a.PrincipalID == principalID && a.PoolID == poolID && !a.CreatedAt.Before(since) && a.CountsTowardQuota() {
			n++
		}
	}
	return n, nil
}

func (f *fakeLog) CountForPool(ctx context.Context, poolID uint, since time.Time) (int64, error) {
	var n int64
	for _, a := range f.attempts {
		if a.PoolID == poolID && !a.CreatedAt.Before(since) && a.CountsTowardQuota() {
			n++
		}
	}
	return n, nil
}

func (f *fakeLog) LastForPrincipal(ctx context.Context, principalID, poolID uint) (*domain.AllocationAttempt, error) {
	var last *domain.AllocationAttempt
	for i := range f.attempts {
		a := &f.attempts[i]
		if a.PrincipalID != principalID || a.PoolID != poolID || !a.CountsTowardQuota() {
			continue
		}
		if last == nil || a.CreatedAt.After(last.CreatedAt) {
			last = a
		}
	}
	return last, nil
}

type fakeGrants []domain.BonusGrant

func (f fakeGrants) ActiveGrants(ctx context.Context, principalID, poolID uint, now time.Time) ([]domain.BonusGrant, error) {
	var out []domain.BonusGrant
	for _, g := range f {
		if g.PrincipalID == principalID && g.PoolID == poolID && g.UsedAt == nil && g.ExpiresAt.After(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

var evalNow = time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

func newTestEvaluator(log *fakeLog, grants fakeGrants) *Evaluator {
	return NewEvaluator(log, grants, WithClock(func() time.Time { return evalNow }))
}

func attemptAt(principal uint, at time.Time, outcome domain.AttemptOutcome) domain.AllocationAttempt {
	return domain.AllocationAttempt{PrincipalID: principal, PoolID: 1, CreatedAt: at, Outcome: outcome}
}

func TestEvaluateDailyQuotaExceeded(t *testing.T) {
	log := &fakeLog{attempts: []domain.AllocationAttempt{
		attemptAt(7, evalNow.Add(-time.Hour), domain.OutcomeAllocated),
	}}
	pool := domain.Pool{ID: 1, PeriodKey: "DAILY", PerUserLimit: 1, Active: true}

	d, err := newTestEvaluator(log, nil).Evaluate(context.Background(), domain.Principal{ID: 7}, pool)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Allowed || d.Reason != ReasonQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %+v", d)
	}
	want := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	if d.NextAvailableAt == nil || !d.NextAvailableAt.Equal(want) {
		t.Fatalf("NextAvailableAt = %v, want %v", d.NextAvailableAt, want)
	}
}

func TestEvaluateYesterdayDoesNotCount(t *testing.T) {
	log := &fakeLog{attempts: []domain.AllocationAttempt{
		attemptAt(7, evalNow.Add(-24*time.Hour), domain.OutcomeAllocated),
	}}
	pool := domain.Pool{ID: 1, PeriodKey: "day", PerUserLimit: 1, Active: true}

	d, err := newTestEvaluator(log, nil).Evaluate(context.Background(), domain.Principal{ID: 7}, pool)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected allowed with 1 remaining, got %+v", d)
	}
}

func TestEvaluateRejectedAttemptsDoNotCount(t *testing.T) {
	log := &fakeLog{attempts: []domain.AllocationAttempt{
		attemptAt(7, evalNow.Add(-time.Minute), domain.OutcomeRejected),
		attemptAt(7, evalNow.Add(-2*time.Minute), domain.OutcomeConflict),
	}}
	pool := domain.Pool{ID: 1, PeriodKey: "DAILY", PerUserLimit: 2, Active: true}

	d, err := newTestEvaluator(log, nil).Evaluate(context.Background(), domain.Principal{ID: 7}, pool)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected 1 remaining, got %+v", d)
	}
}

func TestEvaluateCooldown(t *testing.T) {
	last := evalNow.Add(-2 * time.Hour)
	log := &fakeLog{attempts: []domain.AllocationAttempt{attemptAt(7, last, domain.OutcomeAllocated)}}
	pool := domain.Pool{ID: 1, PeriodKey: "COOLDOWN", PerUserLimit: 1, CooldownHours: 6, Active: true}

	d, err := newTestEvaluator(log, nil).Evaluate(context.Background(), domain.Principal{ID: 7}, pool)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Allowed || d.Reason != ReasonCooldownActive {
		t.Fatalf("expected cooldown active, got %+v", d)
	}
	want := last.Add(6 * time.Hour)
	if d.NextAvailableAt == nil || !d.NextAvailableAt.Equal(want) {
		t.Fatalf("NextAvailableAt = %v, want %v", d.NextAvailableAt, want)
	}

	pool.CooldownHours = 1
	d, err = newTestEvaluator(log, nil).Evaluate(context.Background(), domain.Principal{ID: 7}, pool)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected cooldown elapsed, got %+v", d)
	}
}

func TestEvaluateAllTimeHasNoNextAvailable(t *testing.T) {
	log := &fakeLog{attempts: []domain.AllocationAttempt{
		attemptAt(7, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), domain.OutcomeAllocated),
	}}
	pool := domain.Pool{ID: 1, PeriodKey: "ALL_TIME", PerUserLimit: 1, Active: true}

	d, err := newTestEvaluator(log, nil).Evaluate(context.Background(), domain.Principal{ID: 7}, pool)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Allowed || d.Reason != ReasonQuotaExceeded || d.NextAvailableAt != nil {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestEvaluateGlobalLimitIndependentOfUserQuota(t *testing.T) {
	log := &fakeLog{attempts: []domain.AllocationAttempt{
		attemptAt(1, evalNow.Add(-time.Hour), domain.OutcomeAllocated),
		attemptAt(2, evalNow.Add(-time.Hour), domain.OutcomeAllocated),
	}}
	limit := 2
	pool := domain.Pool{ID: 1, PeriodKey: "DAILY", PerUserLimit: 5, GlobalLimit: &limit, Active: true}

	d, err := newTestEvaluator(log, nil).Evaluate(context.Background(), domain.Principal{ID: 9}, pool)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Allowed || d.Reason != ReasonGlobalLimit {
		t.Fatalf("expected global limit, got %+v", d)
	}
}

func TestEvaluateTierAndInactive(t *testing.T) {
	ev := newTestEvaluator(&fakeLog{}, nil)
	ctx := context.Background()

	d, err := ev.Evaluate(ctx, domain.Principal{ID: 1, Tier: 1}, domain.Pool{ID: 1, Active: true, MinTier: 3})
	if err != nil || d.Reason != ReasonTierTooLow {
		t.Fatalf("expected tier too low, got %+v (%v)", d, err)
	}

	d, err = ev.Evaluate(ctx, domain.Principal{ID: 1, Tier: 5}, domain.Pool{ID: 1, Active: false})
	if err != nil || d.Reason != ReasonPoolInactive {
		t.Fatalf("expected pool inactive, got %+v (%v)", d, err)
	}

	ended := evalNow.Add(-time.Minute)
	d, err = ev.Evaluate(ctx, domain.Principal{ID: 1}, domain.Pool{ID: 1, Active: true, EndsAt: &ended})
	if err != nil || d.Reason != ReasonPoolInactive {
		t.Fatalf("expected closed campaign to be inactive, got %+v (%v)", d, err)
	}
}

func TestEvaluateUnlimited(t *testing.T) {
	d, err := newTestEvaluator(&fakeLog{}, nil).Evaluate(context.Background(), domain.Principal{ID: 1}, domain.Pool{ID: 1, Active: true})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed || d.Remaining != Unlimited {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestEvaluateBonusGrantExtendsQuota(t *testing.T) {
	log := &fakeLog{attempts: []domain.AllocationAttempt{
		attemptAt(7, evalNow.Add(-time.Hour), domain.OutcomeAllocated),
	}}
	grants := fakeGrants{
		{ID: 11, PrincipalID: 7, PoolID: 1, ExpiresAt: evalNow.Add(time.Hour)},
		{ID: 12, PrincipalID: 7, PoolID: 1, ExpiresAt: evalNow.Add(-time.Hour)},
	}
	pool := domain.Pool{ID: 1, PeriodKey: "DAILY", PerUserLimit: 1, Active: true}

	d, err := newTestEvaluator(log, grants).Evaluate(context.Background(), domain.Principal{ID: 7}, pool)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed || d.UsesBonusGrant == nil || *d.UsesBonusGrant != 11 || d.Remaining != 1 {
		t.Fatalf("expected bonus grant 11 to be used, got %+v", d)
	}
}

func TestEvaluateUnknownPeriodIsError(t *testing.T) {
	_, err := newTestEvaluator(&fakeLog{}, nil).Evaluate(context.Background(), domain.Principal{ID: 1}, domain.Pool{ID: 1, Active: true, PeriodKey: "hourly"})
	if err == nil {
		t.Fatal("expected error for unknown period")
	}
}
