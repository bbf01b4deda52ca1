package auth

// Rejection reasons. They are shown to callers verbatim.
const (
	ReasonWriteNeedsUser = "write operations require user authentication"
	ReasonNeedsUser      = "this operation requires user authentication"
	ReasonNotConfigured  = "no authentication configured"

	// ReasonEmptyToken is returned by the router, before Decide, for a
	// supplied credential with a blank token.
	ReasonEmptyToken = "user credential token must not be empty"
)

// Decision is the outcome of Decide: UseShared, UseUser or Reject.
type Decision interface {
	isDecision()
}

// UseShared authorizes the call with the process-wide shared credential.
type UseShared struct{}

// UseUser authorizes the call with the caller's own credential.
type UseUser struct {
	Credential Credential
}

// Reject refuses the call.
type Reject struct {
	Reason string
}

func (UseShared) isDecision() {}
func (UseUser) isDecision() {}
func (Reject) isDecision() {}

// Decide picks the credential source for one operation. It has no side
// effects and the same inputs always produce the same decision.
//
// An explicit user credential always wins. Writes never fall back to the
// shared credential. Reads use the shared credential when one is configured
// and the mode is not per-user.
func Decide(kind OpKind, user *Credential, mode Mode, sharedPresent bool) Decision {
	if user != nil {
		return UseUser{Credential: *user}
	}

	if kind == Write {
		return Reject{Reason: ReasonWriteNeedsUser}
	}

	if sharedPresent && mode != ModePerUser {
		return UseShared{}
	}
	if mode == ModePerUser || mode == ModeHybrid {
		return Reject{Reason: ReasonNeedsUser}
	}
	return Reject{Reason: ReasonNotConfigured}
}
