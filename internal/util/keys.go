package util

import (
	"fmt"
	"net/url"
)

// ParamsKey returns a deterministic serialization of params: keys sorted,
// values rendered with %v and query-escaped. Nil values are skipped so that
// {a:1} and {a:1, b:nil} produce the same key.
func ParamsKey(params map[string]any) string {
	v := make(url.Values, len(params))
	for k, val := range params {
		if val == nil {
			continue
		}
		v.Set(k, fmt.Sprint(val))
	}
	return v.Encode() // Encode sorts by key
}

// Match reports whether key matches a Redis-style glob pattern.
// Supported: '*' (any run, including empty) and '?' (exactly one byte).
func Match(pattern, key string) bool {
	p, k := 0, 0
	star, mark := -1, 0
	for k < len(key) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == key[k]):
			p++
			k++
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, k
			p++
		case star >= 0:
			p = star + 1
			mark++
			k = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
