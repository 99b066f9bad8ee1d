package engines

import (
	"fmt"
	"strings"

	"DBAdminDO/internal/pkg/apperrors"
)

// IsProtected reports whether username is one of the manager's system users
func IsProtected(m interface{ ProtectedUsers() []string }, username string) bool {
	for _, p := range m.ProtectedUsers() {
		if strings.EqualFold(p, username) {
			return true
		}
	}
	return false
}

// ProtectedError reports a refused deletion of a system user
func ProtectedError(username string) error {
	return fmt.Errorf("cannot delete %q: %w", username, apperrors.ErrProtectedUser)
}

// InvalidConnectionID reports a malformed session identifier
func InvalidConnectionID(id string) error {
	return apperrors.Invalid("invalid connection id %q", id)
}
