package gateway

import (
	"strconv"
	"time"

	"DBAdminDO/internal/logparser"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/validation"
)

// Request bounds
const (
	MinLogLines     = 10
	MaxLogLines     = 1000
	DefaultLogLines = 100

	MinPerPage     = 10
	MaxPerPage     = 100
	DefaultPerPage = 25

	DefaultKeyLimit      = 100
	DefaultQueryLogLimit = 50

	DefaultTimeRange = "24h"
)

// timeRanges maps the accepted metrics windows to their length
var timeRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Limits are the configurable bounds applied to caller input
type Limits struct {
	MaxQueryLength int
	MaxLogEntries  int
	KeyListLimit   int
	QueryLogLimit  int
	PasswordLength int
}

// LimitsFrom reads limits from config, falling back to defaults
func LimitsFrom(cfg *config.GatewayConfig) Limits {
	l := Limits{
		MaxQueryLength: validation.DefaultMaxQueryLength,
		MaxLogEntries:  logparser.MaxEntries,
		KeyListLimit:   500,
		QueryLogLimit:  100,
		PasswordLength: 32,
	}
	if cfg == nil {
		return l
	}
	if cfg.MaxQueryLength > 0 {
		l.MaxQueryLength = cfg.MaxQueryLength
	}
	if cfg.MaxLogEntries > 0 {
		l.MaxLogEntries = cfg.MaxLogEntries
	}
	if cfg.KeyListLimit > 0 {
		l.KeyListLimit = cfg.KeyListLimit
	}
	if cfg.QueryLogLimit > 0 {
		l.QueryLogLimit = cfg.QueryLogLimit
	}
	if cfg.PasswordLength >= 16 {
		l.PasswordLength = cfg.PasswordLength
	}
	return l
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TimeRange returns s if it is an accepted metrics window, else 24h
func TimeRange(s string) string {
	if _, ok := timeRanges[s]; ok {
		return s
	}
	return DefaultTimeRange
}

// LogLines clamps the number of log lines requested from the container
func LogLines(n int) int {
	if n == 0 {
		n = DefaultLogLines
	}
	return Clamp(n, MinLogLines, MaxLogLines)
}

// PerPage clamps a page size; zero selects the default
func PerPage(n int) int {
	if n == 0 {
		n = DefaultPerPage
	}
	return Clamp(n, MinPerPage, MaxPerPage)
}

// Page returns n, or 1 when n is below 1
func Page(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// limit clamps a listing size to [1, max], zero selecting def
func limit(n, def, max int) int {
	if n <= 0 {
		n = def
	}
	return Clamp(n, 1, max)
}

// Atoi parses a query parameter, returning 0 for anything unparsable
func Atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
