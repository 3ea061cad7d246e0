// Package utils provides small helpers shared by handlers and services:
// page windows over query strings and display time labels.
package utils

import "strconv"

// Default and maximum page sizes for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// IntParam parses s as an int and clamps it to [lo, hi]. Empty or invalid
// input yields def, which is clamped as well.
//
// Example:
//
//	k := utils.IntParam(c.Query("k"), 10, 1, 50)
func IntParam(s string, def, lo, hi int) int {
	n := def
	if s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			n = v
		}
	}
	return max(lo, min(n, hi))
}

// Window normalizes a 1-based page and a page size and returns them with
// the row offset of the page. Non-positive values fall back to page 1 and
// DefaultPageSize; sizes above MaxPageSize are capped.
func Window(page, pageSize int) (p, size, offset int) {
	p = max(page, 1)
	size = pageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)
	return p, size, (p - 1) * size
}
