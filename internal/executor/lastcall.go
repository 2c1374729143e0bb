package executor

import (
	"fmt"

	"github.com/sprintbridge/backend/internal/shared/types"
)

// TimestampLayout is the ISO-8601 form of last-call timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// LastCallKey returns the storage key of the last-call timestamp of s.
func LastCallKey(s types.Service) string {
	return string(s) + "_last_call"
}

// LastCallKeys returns the keys of every service.
func LastCallKeys() []string {
	keys := make([]string, 0, len(types.Services))
	for _, s := range types.Services {
		keys = append(keys, LastCallKey(s))
	}
	return keys
}

func (e *Executor) recordLastCall(s types.Service) error {
	if e.store == nil {
		return nil
	}
	stamp := e.now().UTC().Format(TimestampLayout)
	if err := e.store.Set(LastCallKey(s), stamp); err != nil {
		return fmt.Errorf("failed to record last call: %w", err)
	}
	return nil
}
