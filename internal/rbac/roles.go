package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsParticipantRole reports whether the role can take part in a call session.
// Admins administer; they do not join calls.
func IsParticipantRole(role string) bool {
	return role == RolePatient || role == RoleDoctor
}
