package models

// LeadSnapshot is the last known lead/conversation state used for
// condition evaluation. It is captured per dispatch, never mutated by
// the evaluator.
type LeadSnapshot struct {
	Message     string   `json:"message"`      // latest inbound message
	LastMessage string   `json:"last_message"` // previous inbound message
	Tags        []string `json:"tags"`
	Stage       string   `json:"stage"`
	Value       string   `json:"value"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
}

// HasTag reports whether the snapshot carries the given tag id.
func (s *LeadSnapshot) HasTag(tagID string) bool {
	for _, tag := range s.Tags {
		if tag == tagID {
			return true
		}
	}

	return false
}

// MemberRole is a workspace member's role. Only sellers and managers
// are eligible for round-robin assignment.
type MemberRole string

const (
	RoleSeller  MemberRole = "seller"
	RoleManager MemberRole = "manager"
	RoleViewer  MemberRole = "viewer"
)

// Member is a workspace member as reported by the CRM collaborator.
type Member struct {
	UserID string     `json:"user_id"`
	Role   MemberRole `json:"role"`
}

// EligibleAssignee reports whether the member may receive round-robin
// assignments.
func (m Member) EligibleAssignee() bool {
	return m.Role == RoleSeller || m.Role == RoleManager
}
