package validation

import (
	"strings"
	"testing"

	"DBAdminDO/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBlockedQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		blocked bool
	}{
		{name: "select", query: "SELECT * FROM users", blocked: false},
		{name: "drop table alone", query: "DROP TABLE scratch", blocked: false},
		{name: "drop database", query: "DROP DATABASE app", blocked: true},
		{name: "drop database lowercase with spaces", query: "  drop   database app", blocked: true},
		{name: "drop user", query: "drop user bob", blocked: true},
		{name: "drop role", query: "DROP ROLE reporting", blocked: true},
		{name: "truncate all", query: "truncate all", blocked: true},
		{name: "chained drop", query: "SELECT 1; DROP TABLE users", blocked: true},
		{name: "chained truncate", query: "select 1;\ntruncate users", blocked: true},
		{name: "semicolon then unrelated", query: "SELECT 1; SELECT 2", blocked: false},
		{name: "drop database later without semicolon", query: "SELECT 'DROP DATABASE'", blocked: false},
		{name: "mongo drop database", query: "db.dropDatabase()", blocked: true},
		{name: "mongo find", query: "db.users.find({})", blocked: false},
		{name: "redis flushall", query: "FLUSHALL", blocked: true},
		{name: "redis get", query: "GET user:1", blocked: false},
		{name: "redis quoted flushall", query: `"FLUSHALL"`, blocked: true},
		{name: "redis quoted config set", query: "'CONFIG' SET dir /tmp", blocked: true},
		{name: "redis config set as one word", query: `"config set" dir /tmp`, blocked: true},
		{name: "redis quoted get", query: `GET "user:1"`, blocked: false},
		{name: "leading block comment", query: "/* x */ DROP DATABASE app", blocked: true},
		{name: "comment between keywords", query: "DROP/**/DATABASE app", blocked: true},
		{name: "leading line comment", query: "-- cleanup\nDROP USER bob", blocked: true},
		{name: "mysql hash comment", query: "# cleanup\ndrop role reporting", blocked: true},
		{name: "mysql executable comment", query: "/*!50000 DROP DATABASE app */", blocked: true},
		{name: "commented select", query: "/* report */ SELECT count(*) FROM users", blocked: false},
		{name: "mongo bracket drop database", query: `db["dropDatabase"]()`, blocked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlockedQuery(tt.query))
		})
	}
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, ValidateQuery("SELECT 1", 0))

	err := ValidateQuery("   ", 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	err = ValidateQuery(strings.Repeat("x", 101), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum length")

	err = ValidateQuery("DROP DATABASE prod", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}
