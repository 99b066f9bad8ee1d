package gateway

import (
	"testing"

	"DBAdminDO/internal/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestClamps(t *testing.T) {
	assert.Equal(t, 10, LogLines(1))
	assert.Equal(t, 1000, LogLines(5000))
	assert.Equal(t, DefaultLogLines, LogLines(0))

	assert.Equal(t, 10, PerPage(3))
	assert.Equal(t, 100, PerPage(1000))
	assert.Equal(t, DefaultPerPage, PerPage(0))

	assert.Equal(t, 1, Page(-2))
	assert.Equal(t, 4, Page(4))
}

func TestTimeRange(t *testing.T) {
	for _, r := range []string{"1h", "6h", "24h", "7d", "30d"} {
		assert.Equal(t, r, TimeRange(r))
	}
	assert.Equal(t, "24h", TimeRange(""))
	assert.Equal(t, "24h", TimeRange("2y"))
}

func TestLimitsFrom(t *testing.T) {
	l := LimitsFrom(nil)
	assert.Equal(t, 500, l.KeyListLimit)
	assert.Equal(t, 100, l.QueryLogLimit)

	l = LimitsFrom(&config.GatewayConfig{KeyListLimit: 200, PasswordLength: 8})
	assert.Equal(t, 200, l.KeyListLimit)
	assert.Equal(t, 32, l.PasswordLength)

	assert.Equal(t, 500, limit(10000, DefaultKeyLimit, l.KeyListLimit+300))
	assert.Equal(t, DefaultKeyLimit, limit(0, DefaultKeyLimit, 500))
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword(24)
	assert.NoError(t, err)
	assert.Len(t, a, 24)
	b, _ := GeneratePassword(24)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^[A-Za-z0-9]+$`, a)
}
