package config

import "fmt"

// Error is a misconfiguration. It is the one cache-layer failure that is
// surfaced to callers, at construction time.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}
