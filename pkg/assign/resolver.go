// Package assign resolves assignment nodes to a concrete workspace
// member, including the shared round-robin rotation.
package assign

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapfy/botflow/pkg/models"
)

var (
	// ErrUnassignedTarget reports a specific-mode node whose user is
	// absent or no longer a workspace member.
	ErrUnassignedTarget = errors.New("assignment target is not a workspace member")

	// ErrNoEligibleAssignee reports a round-robin resolution with no
	// seller or manager available.
	ErrNoEligibleAssignee = errors.New("no eligible assignee in workspace")
)

// CursorStore holds the workspace-scoped rotation cursor. Advance must
// be atomic per workspace: concurrent resolutions may neither assign
// the same member twice in a row nor skip one.
type CursorStore interface {
	// Advance returns the next user id from eligible (ordered) after the
	// workspace's last assignment, wrapping at the end, and records it.
	Advance(ctx context.Context, workspaceID string, eligible []string) (string, error)
}

// Resolver maps assignment node data to a user id.
type Resolver struct {
	cursors CursorStore
}

func NewResolver(cursors CursorStore) *Resolver {
	return &Resolver{cursors: cursors}
}

// Resolve picks the assignee for the given node data. members is the
// current workspace member list, read fresh on every resolution.
func (r *Resolver) Resolve(ctx context.Context, workspaceID string, data models.AssignData, members []models.Member) (string, error) {
	switch data.Mode {
	case models.AssignModeSpecific:
		if data.UserID == "" {
			return "", ErrUnassignedTarget
		}

		for _, member := range members {
			if member.UserID == data.UserID {
				return data.UserID, nil
			}
		}

		return "", fmt.Errorf("%w: %s", ErrUnassignedTarget, data.UserID)

	case models.AssignModeRoundRobin:
		eligible := make([]string, 0, len(members))

		for _, member := range members {
			if member.EligibleAssignee() {
				eligible = append(eligible, member.UserID)
			}
		}

		if len(eligible) == 0 {
			return "", ErrNoEligibleAssignee
		}

		return r.cursors.Advance(ctx, workspaceID, eligible)

	default:
		return "", fmt.Errorf("unknown assignment mode %q", data.Mode)
	}
}
