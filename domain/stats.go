package domain

import "time"

type (
	UnitStat struct {
		UnitID    uint       `json:"unit_id"`
		Label     string     `json:"label"`
		Type      RewardType `json:"type"`
		Allocated int64      `json:"allocated"`
		Remaining *int       `json:"remaining,omitempty"`
	}

	PoolStats struct {
		PoolID    uint                     `json:"pool_id"`
		Since     time.Time                `json:"since"`
		Total     int64                    `json:"total"`
		ByOutcome map[AttemptOutcome]int64 `json:"by_outcome"`
		Units     []UnitStat               `json:"units"`
	}

	TrendPoint struct {
		Day      string `json:"day"`
		Attempts int64  `json:"attempts"`
		Wins     int64  `json:"wins"`
	}

	// OutcomeCount is a row of a grouped count over allocation_attempts.
	OutcomeCount struct {
		Outcome AttemptOutcome
		UnitID  *uint
		Count   int64
	}
)
