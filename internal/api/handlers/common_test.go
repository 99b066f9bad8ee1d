package handlers

import (
	"net/http"
	"testing"

	"DBAdminDO/internal/gateway"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		result gateway.Result
		want   int
	}{
		{"ok read", gateway.Available(nil), http.StatusOK},
		{"unsupported", gateway.Result{Outcome: gateway.OutcomeUnsupported, Body: map[string]any{"available": false}}, http.StatusOK},
		{"not found", gateway.Unavailable(gateway.OutcomeNotFound, "Database not found"), http.StatusNotFound},
		{"forbidden", gateway.Failed(gateway.OutcomeForbidden, "no"), http.StatusForbidden},
		{"invalid", gateway.Failed(gateway.OutcomeInvalid, "bad"), http.StatusUnprocessableEntity},
		{"failed read", gateway.Unavailable(gateway.OutcomeFailed, "boom"), http.StatusOK},
		{"failed write", gateway.Failed(gateway.OutcomeFailed, "boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.result))
		})
	}
}

func TestBindingMessage(t *testing.T) {
	require.NoError(t, RegisterValidators())

	var body struct {
		Table string `binding:"required,tablename"`
		Dir   string `binding:"omitempty,orderdir"`
	}
	body.Table = "users; drop"
	body.Dir = "up"

	err := binding.Validator.ValidateStruct(&body)
	require.Error(t, err)
	msg := bindingMessage(err)
	assert.Contains(t, msg, "invalid table name: users; drop")
	assert.Contains(t, msg, "order_dir must be asc or desc")
}
