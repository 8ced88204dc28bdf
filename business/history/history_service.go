package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"promoHub/domain"
)

type (
	Repository interface {
		ListForPrincipal(ctx context.Context, principalID uint, limit int) ([]domain.AllocationAttempt, error)
		CountByOutcome(ctx context.Context, poolID uint, since time.Time) ([]domain.OutcomeCount, error)
		ListSince(ctx context.Context, poolID uint, since time.Time) ([]domain.AllocationAttempt, error)
		RecentWins(ctx context.Context, poolID uint, limit int) ([]domain.AllocationAttempt, error)
	}

	UnitReader interface {
		ListByPool(ctx context.Context, poolID uint) ([]domain.RewardUnit, error)
	}

	// Broadcaster fans committed wins out to live subscribers. Publish must
	// not block.
	Broadcaster interface {
		Publish(event WinEvent)
	}

	WinEvent struct {
		PoolID      uint              `json:"pool_id"`
		PrincipalID uint              `json:"principal_id"`
		AttemptID   uint              `json:"attempt_id"`
		Label       string            `json:"label"`
		Type        domain.RewardType `json:"type"`
		Value       string            `json:"value"`
		At          time.Time         `json:"at"`
	}

	HistoryService struct {
		repo  Repository
		units UnitReader
		now   func() time.Time
	}
)

const (
	defaultLimit = 50
	maxLimit     = 500
	maxTrendDays = 90
)

func NewHistoryService(repo Repository, units UnitReader) *HistoryService {
	return &HistoryService{repo: repo, units: units, now: time.Now}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (s *HistoryService) ListForPrincipal(ctx context.Context, principalID uint, limit int) ([]domain.AllocationAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListForPrincipal(ctx, principalID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return rows, nil
}

// PoolStats aggregates outcomes since the given instant together with the
// stock left on every unit of the pool.
func (s *HistoryService) PoolStats(ctx context.Context, poolID uint, since time.Time) (domain.PoolStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.PoolStats{}, err
	}

	counts, err := s.repo.CountByOutcome(ctx, poolID, since)
	if err != nil {
		return domain.PoolStats{}, fmt.Errorf("failed to count outcomes: %w", err)
	}

	units, err := s.units.ListByPool(ctx, poolID)
	if err != nil {
		return domain.PoolStats{}, fmt.Errorf("failed to list units: %w", err)
	}

	stats := domain.PoolStats{
		PoolID:    poolID,
		Since:     since.UTC(),
		ByOutcome: map[domain.AttemptOutcome]int64{},
	}

	allocated := map[uint]int64{}
	for _, c := range counts {
		stats.Total += c.Count
		stats.ByOutcome[c.Outcome] += c.Count
		if c.Outcome == domain.OutcomeAllocated && c.UnitID != nil {
			allocated[*c.UnitID] += c.Count
		}
	}

	for _, u := range units {
		stats.Units = append(stats.Units, domain.UnitStat{
			UnitID:    u.ID,
			Label:     u.Label,
			Type:      u.Type,
			Allocated: allocated[u.ID],
			Remaining: u.Remaining(),
		})
	}

	return stats, nil
}

// Trend buckets the last days calendar days (UTC) into attempt and win counts,
// oldest first. Days without attempts are included with zero counts.
func (s *HistoryService) Trend(ctx context.Context, poolID uint, days int) ([]domain.TrendPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))

	rows, err := s.repo.ListSince(ctx, poolID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	buckets := make(map[string]*domain.TrendPoint, days)
	points := make([]domain.TrendPoint, days)
	for i := range points {
		points[i].Day = since.AddDate(0, 0, i).Format("2006-01-02")
		buckets[points[i].Day] = &points[i]
	}

	for _, a := range rows {
		if !a.CountsTowardQuota() {
			continue
		}
		p, ok := buckets[a.CreatedAt.UTC().Format("2006-01-02")]
		if !ok {
			continue
		}
		p.Attempts++
		if a.Outcome == domain.OutcomeAllocated && a.RewardType != domain.RewardNoWin {
			p.Wins++
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points, nil
}

func (s *HistoryService) RecentWins(ctx context.Context, poolID uint, limit int) ([]WinEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.repo.RecentWins(ctx, poolID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list wins: %w", err)
	}

	events := make([]WinEvent, 0, len(rows))
	for _, a := range rows {
		events = append(events, EventFromAttempt(a, ""))
	}
	return events, nil
}

// EventFromAttempt builds the live-feed event of a committed attempt.
func EventFromAttempt(a domain.AllocationAttempt, label string) WinEvent {
	if label == "" {
		if l, ok := a.Metadata["unit_label"].(string); ok {
			label = l
		}
	}
	return WinEvent{
		PoolID:      a.PoolID,
		PrincipalID: a.PrincipalID,
		AttemptID:   a.ID,
		Label:       label,
		Type:        a.RewardType,
		Value:       a.Magnitude.StringFixed(2),
		At:          a.CreatedAt.UTC(),
	}
}

// NopBroadcaster drops every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(WinEvent) {}
