// Package authz decides whether a caller's team role grants an ability
package authz

import (
	"fmt"
	"strings"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
)

// Ability is what an operation requires beyond team ownership
type Ability string

const (
	// AbilityRead needs team ownership only
	AbilityRead Ability = ""
	// AbilityUpdate covers configuration and data changes
	AbilityUpdate Ability = "update"
	// AbilityManage covers destructive and credential-affecting operations
	AbilityManage Ability = "manage"
)

// Team roles
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

var roleAbilities = map[string][]Ability{
	RoleOwner:  {AbilityUpdate, AbilityManage},
	RoleAdmin:  {AbilityUpdate, AbilityManage},
	RoleMember: {AbilityUpdate},
	RoleViewer: {},
}

// Authorizer checks abilities against the role table
type Authorizer struct{}

// New creates an Authorizer
func New() *Authorizer {
	return &Authorizer{}
}

// Authorize returns apperrors.ErrForbidden unless caller may perform ability on handle.
// The resolver has already scoped handle to the caller's team.
func (a *Authorizer) Authorize(caller *models.Caller, ability Ability, handle *models.DatabaseHandle) error {
	if caller == nil {
		return fmt.Errorf("%w: no caller", apperrors.ErrForbidden)
	}
	if handle != nil && handle.TeamID != caller.TeamID {
		return fmt.Errorf("%w: database belongs to another team", apperrors.ErrForbidden)
	}
	if ability == AbilityRead {
		return nil
	}

	for _, granted := range roleAbilities[strings.ToLower(caller.Role)] {
		if granted == ability {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q lacks %q", apperrors.ErrForbidden, caller.Role, ability)
}

// IsRole reports whether role is a known team role
func IsRole(role string) bool {
	_, ok := roleAbilities[strings.ToLower(role)]
	return ok
}
