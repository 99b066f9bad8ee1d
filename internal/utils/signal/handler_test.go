package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunCleanup_ReverseOrderOnce(t *testing.T) {
	var order []int
	RegisterCleanupFunc(func() { order = append(order, 1) })
	RegisterCleanupFunc(func() { order = append(order, 2) })

	RunCleanup()
	RunCleanup()

	assert.Equal(t, []int{2, 1}, order)
}
