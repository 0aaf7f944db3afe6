package events

import "time"

// OperationStart is emitted before executing a query or mutation.
type OperationStart struct {
	Kind   string // "query" or "mutation"
	Key    string
	Policy string
}

// OperationFinish is emitted after a query or mutation delivers a result.
// Under cache-and-network it is emitted once per delivery.
type OperationFinish struct {
	Kind     string
	Key      string
	Policy   string
	CacheHit bool
	Err      error
	Duration time.Duration
}
