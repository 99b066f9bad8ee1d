// Package validation holds the checks every caller-supplied identifier passes
// before it is placed into a remote command. Engine services build command
// strings for CLI tools instead of using parameterized drivers, so nothing
// reaches an engine without going through here first.
package validation

import (
	"regexp"
	"strings"
	"unicode"

	"DBAdminDO/internal/pkg/apperrors"

	libinjection "github.com/corazawaf/libinjection-go"
)

const (
	// MaxTableNameLength bounds table, collection and schema-qualified names
	MaxTableNameLength = 128
	// MaxSearchLength bounds the free-text search applied to table data
	MaxSearchLength = 255
	// MaxPatternLength bounds key glob patterns
	MaxPatternLength = 256
	// MaxKeyLength bounds a single key name
	MaxKeyLength = 512
)

var (
	tableNameRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	columnNameRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	usernameRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]{0,62}$`)
	redisPatternRe = regexp.MustCompile(`^[A-Za-z0-9_:.*?\[\]\-/@#{}=+^!,]+$`)
	fieldPathRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// allowedExtensions is the set of Postgres extensions that may be toggled
var allowedExtensions = map[string]bool{
	"pg_stat_statements": true,
	"pgcrypto":           true,
	"uuid-ossp":          true,
	"hstore":             true,
	"citext":             true,
	"pg_trgm":            true,
	"btree_gin":          true,
	"btree_gist":         true,
	"cube":               true,
	"earthdistance":      true,
	"fuzzystrmatch":      true,
	"intarray":           true,
	"ltree":              true,
	"tablefunc":          true,
	"unaccent":           true,
	"postgis":            true,
	"postgis_topology":   true,
	"vector":             true,
	"timescaledb":        true,
	"pg_buffercache":     true,
	"pgrowlocks":         true,
	"pgstattuple":        true,
	"bloom":              true,
	"dblink":             true,
	"postgres_fdw":       true,
}

// maintenanceOperations lists the maintenance commands that may be run
var maintenanceOperations = map[string]bool{
	"vacuum":  true,
	"analyze": true,
}

// IsValidTableName reports whether name is a safe table or collection name
func IsValidTableName(name string) bool {
	if name == "" || len(name) > MaxTableNameLength {
		return false
	}
	return tableNameRe.MatchString(name)
}

// IsValidColumnName reports whether name is a safe, unqualified column name
func IsValidColumnName(name string) bool {
	if name == "" || len(name) > MaxTableNameLength {
		return false
	}
	return columnNameRe.MatchString(name)
}

// IsValidFieldPath reports whether path is a safe dotted document field path
func IsValidFieldPath(path string) bool {
	if path == "" || len(path) > MaxTableNameLength {
		return false
	}
	return fieldPathRe.MatchString(path)
}

// IsValidUsername reports whether name can be used as a database login
func IsValidUsername(name string) bool {
	return usernameRe.MatchString(name)
}

// IsValidPassword accepts printable passwords of reasonable length.
// Passwords are always quoted before use, control characters are still refused.
func IsValidPassword(password string) bool {
	if password == "" || len(password) > 128 {
		return false
	}
	for _, r := range password {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// IsValidRedisPattern restricts key glob patterns to a safe character set
func IsValidRedisPattern(pattern string) bool {
	if pattern == "" || len(pattern) > MaxPatternLength {
		return false
	}
	if strings.Contains(pattern, "$(") {
		return false
	}
	return redisPatternRe.MatchString(pattern)
}

// IsValidKeyName accepts key names without whitespace or shell metacharacters
func IsValidKeyName(key string) bool {
	if key == "" || len(key) > MaxKeyLength {
		return false
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
		switch r {
		case ';', '`', '$', '|', '&', '<', '>', '\\', '\'', '"':
			return false
		}
	}
	return true
}

// IsValidExtensionName reports whether name is on the extension allow-list
func IsValidExtensionName(name string) bool {
	return allowedExtensions[name]
}

// AllowedExtensions returns the extension allow-list
func AllowedExtensions() []string {
	names := make([]string, 0, len(allowedExtensions))
	for name := range allowedExtensions {
		names = append(names, name)
	}
	return names
}

// ValidateMaintenanceOperation fails unless op is vacuum or analyze
func ValidateMaintenanceOperation(op string) error {
	if !maintenanceOperations[strings.ToLower(op)] {
		return apperrors.Invalid("invalid maintenance operation %q: only vacuum and analyze are allowed", op)
	}
	return nil
}

// SanitizeSearch strips characters that could alter a generated query fragment
func SanitizeSearch(text string) string {
	replacer := strings.NewReplacer(
		"--", "",
		"/*", "",
		"*/", "",
		"'", "",
		`"`, "",
		"`", "",
		";", "",
		`\`, "",
		"$", "",
	)
	out := text
	// Stripping can form a new comment sequence ("-/*-" -> "--"), repeat until stable
	for {
		next := replacer.Replace(out)
		if next == out {
			break
		}
		out = next
	}
	out = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, out)
	out = strings.TrimSpace(out)
	if len(out) > MaxSearchLength {
		out = out[:MaxSearchLength]
	}
	return out
}

// CheckSearch rejects search text that looks like an injection attempt and
// returns the sanitized form of everything else
func CheckSearch(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(text); isSQLi {
		return "", apperrors.Invalid("search text rejected (pattern %s)", fingerprint)
	}
	return SanitizeSearch(text), nil
}

// NormalizeOrderDir returns asc or desc, defaulting to asc
func NormalizeOrderDir(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "desc") {
		return "desc"
	}
	return "asc"
}
