// Package utils holds small helpers shared by the HTTP and query layers.
package utils

import "strconv"

// MaxPageSize caps any page or limit parameter.
const MaxPageSize = 100

// AtoiDefault parses s as an int and returns def when s is empty or malformed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageWindow turns raw page/limit strings into a usable window. Malformed or
// non-positive values fall back to page 1 and defLimit; limit is capped at
// MaxPageSize. The returned offset is (page-1)*limit.
func PageWindow(rawPage, rawLimit string, defLimit int) (page, limit, offset int) {
	if defLimit < 1 || defLimit > MaxPageSize {
		defLimit = 10
	}
	page = AtoiDefault(rawPage, 1)
	if page < 1 {
		page = 1
	}
	limit = AtoiDefault(rawLimit, defLimit)
	if limit < 1 {
		limit = defLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

// TotalPages returns ceil(total/limit), zero when there is nothing to page.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
