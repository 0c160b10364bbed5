package account

import (
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/session"
)

// State is a step of a single registration attempt.
type State string

const (
	StateSubmitted       State = "Submitted"
	StateValidated       State = "Validated"
	StateIdentityCreated State = "IdentityCreated"
	StateImageStored     State = "ImageStored"
	StateRoleAssigned    State = "RoleAssigned"
	StateSignedIn        State = "SignedIn"
	StateCompleted       State = "Completed"
	StateRejected        State = "Rejected"
	StateRejectedPartial State = "RejectedPartial"
)

// Terminal reports whether no further step follows s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRejected || s == StateRejectedPartial
}

// Registration is the outcome of Register. Trail lists every state the
// attempt passed through, in order.
type Registration struct {
	Profile user.ProfileView
	Session session.Session
	State   State
	Trail   []State
}

func (r *Registration) advance(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

// lastGood is the latest non-terminal state reached.
func (r *Registration) lastGood() State {
	for i := len(r.Trail) - 1; i >= 0; i-- {
		if !r.Trail[i].Terminal() {
			return r.Trail[i]
		}
	}
	return StateSubmitted
}
