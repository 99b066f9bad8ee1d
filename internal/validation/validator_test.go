package validation

import (
	"strings"
	"testing"

	"DBAdminDO/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTableName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "simple", input: "users", want: true},
		{name: "underscore start", input: "_audit", want: true},
		{name: "schema qualified", input: "public.users", want: true},
		{name: "mixed case and digits", input: "Order2024", want: true},
		{name: "empty", input: "", want: false},
		{name: "digit start", input: "1users", want: false},
		{name: "semicolon", input: "users;drop", want: false},
		{name: "backtick", input: "users`", want: false},
		{name: "command substitution", input: "users$(id)", want: false},
		{name: "space", input: "my table", want: false},
		{name: "quote", input: `users"`, want: false},
		{name: "dash", input: "user-data", want: false},
		{name: "too long", input: "a" + strings.Repeat("b", MaxTableNameLength), want: false},
		{name: "at the bound", input: strings.Repeat("a", MaxTableNameLength), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTableName(tt.input))
		})
	}
}

func TestIsValidTableName_AgreesWithPattern(t *testing.T) {
	inputs := []string{"a", "a.b.c", "_", "9", "a b", "a;b", "ä", "x$(y)", "t`", "tbl_1"}
	for _, in := range inputs {
		assert.Equal(t, tableNameRe.MatchString(in), IsValidTableName(in), in)
	}
}

func TestIsValidRedisPattern(t *testing.T) {
	assert.True(t, IsValidRedisPattern("user:*"))
	assert.True(t, IsValidRedisPattern("*"))
	assert.True(t, IsValidRedisPattern("session:[a-f]?"))
	assert.True(t, IsValidRedisPattern("cache/{tenant}:*"))

	assert.False(t, IsValidRedisPattern("*; rm -rf /"))
	assert.False(t, IsValidRedisPattern("user:`id`"))
	assert.False(t, IsValidRedisPattern("user:$(id)"))
	assert.False(t, IsValidRedisPattern("a | b"))
	assert.False(t, IsValidRedisPattern(""))
	assert.False(t, IsValidRedisPattern(strings.Repeat("a", MaxPatternLength+1)))
}

func TestIsValidKeyName(t *testing.T) {
	assert.True(t, IsValidKeyName("user:42:profile"))
	assert.True(t, IsValidKeyName("cache/{tenant}"))
	assert.False(t, IsValidKeyName("a b"))
	assert.False(t, IsValidKeyName("a;b"))
	assert.False(t, IsValidKeyName("$(id)"))
	assert.False(t, IsValidKeyName(""))
}

func TestIsValidExtensionName(t *testing.T) {
	assert.True(t, IsValidExtensionName("pg_stat_statements"))
	assert.True(t, IsValidExtensionName("uuid-ossp"))
	assert.False(t, IsValidExtensionName("plpython3u"))
	assert.False(t, IsValidExtensionName("pgcrypto; DROP TABLE x"))
	assert.Contains(t, AllowedExtensions(), "postgis")
}

func TestValidateMaintenanceOperation(t *testing.T) {
	assert.NoError(t, ValidateMaintenanceOperation("vacuum"))
	assert.NoError(t, ValidateMaintenanceOperation("ANALYZE"))

	err := ValidateMaintenanceOperation("reindex")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Error(t, ValidateMaintenanceOperation("vacuum full"))
}

func TestSanitizeSearch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "alice", want: "alice"},
		{input: "  bob  ", want: "bob"},
		{input: "o'brien", want: "obrien"},
		{input: `x"; DROP TABLE users; --`, want: "x DROP TABLE users"},
		{input: "a/*comment*/b", want: "acommentb"},
		{input: "-/**/-", want: ""},
		{input: "price $100", want: "price 100"},
		{input: "tab\there", want: "tabhere"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizeSearch(tt.input)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "'")
			assert.NotContains(t, got, ";")
			assert.NotContains(t, got, "--")
		})
	}

	long := SanitizeSearch(strings.Repeat("x", MaxSearchLength*2))
	assert.Len(t, long, MaxSearchLength)
}

func TestCheckSearch(t *testing.T) {
	got, err := CheckSearch("laptop computers")
	require.NoError(t, err)
	assert.Equal(t, "laptop computers", got)

	got, err = CheckSearch("   ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = CheckSearch("1' OR '1'='1")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestNormalizeOrderDir(t *testing.T) {
	assert.Equal(t, "asc", NormalizeOrderDir(""))
	assert.Equal(t, "asc", NormalizeOrderDir("sideways"))
	assert.Equal(t, "desc", NormalizeOrderDir("DESC"))
	assert.Equal(t, "asc", NormalizeOrderDir("asc"))
}

func TestIsValidUsernameAndPassword(t *testing.T) {
	assert.True(t, IsValidUsername("app_user"))
	assert.True(t, IsValidUsername("svc.reporting-1"))
	assert.False(t, IsValidUsername("1user"))
	assert.False(t, IsValidUsername("bob'; --"))

	assert.True(t, IsValidPassword("S3cr3t!with spaces"))
	assert.False(t, IsValidPassword(""))
	assert.False(t, IsValidPassword("line\nbreak"))
}
