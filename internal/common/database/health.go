package database

import (
	"context"
	"sort"
)

// Pinger is implemented by every backing-service client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckAll pings each dependency and returns "ok" or the error text per name.
// The second result is false when any dependency failed.
func CheckAll(ctx context.Context, deps map[string]Pinger) (map[string]string, bool) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(deps))
	healthy := true
	for _, name := range names {
		if err := deps[name].Ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	return status, healthy
}
