package domain

import (
	"fmt"
	"slices"
)

// Role is the authorization role carried by a Principal.
type Role string

// Known roles.
const (
	RoleAdmin       Role = "admin"
	RoleJudge       Role = "judge"
	RoleParticipant Role = "participant"
)

// Principal is the authenticated caller of a core operation. Identity is
// established by an external collaborator and passed explicitly.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// RequireRole returns an error wrapping ErrForbidden unless p is identified
// and holds one of allowed.
func RequireRole(p Principal, operation string, allowed ...Role) error {
	if p.ID == "" {
		return fmt.Errorf("%w: %s requires an authenticated principal", ErrForbidden, operation)
	}
	if !slices.Contains(allowed, p.Role) {
		return fmt.Errorf("%w: role %q may not %s", ErrForbidden, p.Role, operation)
	}
	return nil
}
