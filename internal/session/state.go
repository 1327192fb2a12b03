package session

import (
	"fmt"

	"fileconv/internal/services/convertapi"
)

// Phase is the authentication phase of a session.
type Phase int

const (
	PhaseAnonymous Phase = iota
	PhaseCredentialPending
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseAnonymous:
		return "anonymous"
	case PhaseCredentialPending:
		return "credential_pending"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// User is the account the current credential belongs to. It is replaced
// wholesale on every successful fetch.
type User struct {
	ID          string
	Email       string
	IsActive    bool
	IsSuperuser bool
	IsVerified  bool
}

func userFromAPI(u convertapi.User) User {
	return User{
		ID:          u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		IsVerified:  u.IsVerified,
	}
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Credential string
	Phase      Phase
	User       *User
}

// LoggedIn reports whether the snapshot grants access to protected operations.
func (s Snapshot) LoggedIn() bool {
	return s.Phase == PhaseAuthenticated
}

// Valid reports whether the phase agrees with the credential and user fields.
func (s Snapshot) Valid() bool {
	return stateValid(s.Credential, s.Phase, s.User)
}

func stateValid(credential string, phase Phase, user *User) bool {
	hasCredential := credential != ""
	hasUser := user != nil
	switch phase {
	case PhaseAnonymous:
		return !hasCredential && !hasUser
	case PhaseCredentialPending:
		return hasCredential && !hasUser
	case PhaseAuthenticated:
		return hasCredential && hasUser
	default:
		return false
	}
}

// validTransition lists the phase changes the manager may perform. Repeated
// profile fetches keep Authenticated, and a new login from Authenticated goes
// back through CredentialPending.
func validTransition(from, to Phase) bool {
	switch from {
	case PhaseAnonymous:
		return to == PhaseAnonymous || to == PhaseCredentialPending
	case PhaseCredentialPending:
		return to == PhaseAnonymous || to == PhaseAuthenticated
	case PhaseAuthenticated:
		return to == PhaseAnonymous || to == PhaseAuthenticated || to == PhaseCredentialPending
	default:
		return false
	}
}
