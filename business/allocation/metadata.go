package allocation

import (
	"time"

	"gorm.io/datatypes"
)

// reservedKeys are written by the engine and cannot be overridden by callers.
var reservedKeys = map[string]struct{}{
	"context_id":     {},
	"trace_id":       {},
	"event_time":     {},
	"pool_kind":      {},
	"unit_label":     {},
	"alternative":    {},
	"bonus_grant_id": {},
}

func buildBaseContext(now time.Time, contextID, traceID string) map[string]any {
	base := map[string]any{
		"event_time": now.Format(time.RFC3339),
		"dow":        int(now.Weekday()), // 0=Sunday
	}
	if contextID != "" {
		base["context_id"] = contextID
	}
	if traceID != "" {
		base["trace_id"] = traceID
	}
	return base
}

// mergeContext merges multiple maps into a new one; later maps win.
func mergeContext(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// callerMetadata drops keys the engine owns.
func callerMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	return out
}

func toJSONMap(m map[string]any) datatypes.JSONMap {
	return datatypes.JSONMap(m)
}
