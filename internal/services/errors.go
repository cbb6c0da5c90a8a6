package services

import (
	"errors"
	"fmt"

	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/policy"
)

var (
	ErrMissingFields         = errors.New("missing required fields")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUnauthorized          = policy.ErrUnauthorized
	ErrForbidden             = policy.ErrForbidden
	ErrNotFound              = errors.New("not found")
	ErrAlreadyRegistered     = errors.New("already registered for this event")
	ErrTeamSizeViolation     = errors.New("team size violation")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrEmailTaken            = errors.New("email already in use")
)

type TeamBound string

const (
	TeamBoundMin TeamBound = "min"
	TeamBoundMax TeamBound = "max"
)

// TeamSizeError reports which bound a team member list violated. Limit and Got
// count team members excluding the leader.
type TeamSizeError struct {
	Bound TeamBound
	Limit int
	Got   int
}

func (e *TeamSizeError) Error() string {
	if e.Bound == TeamBoundMin {
		return fmt.Sprintf("team size violation: at least %d team members required, got %d", e.Limit, e.Got)
	}
	return fmt.Sprintf("team size violation: at most %d team members allowed, got %d", e.Limit, e.Got)
}

func (e *TeamSizeError) Is(target error) bool {
	return target == ErrTeamSizeViolation
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// missingFor is the error for a record that does not exist. Staff below super
// admin get the same answer as for a record they may not touch.
func missingFor(p *policy.Principal) error {
	switch {
	case !p.Authenticated():
		return ErrUnauthorized
	case p.Role == models.RoleSuperAdmin:
		return ErrNotFound
	case p.Role.IsStaff():
		return ErrForbidden
	}
	return ErrNotFound
}
