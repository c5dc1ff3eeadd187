package refresh

// Outcome is the result of one refresh call. It is one of Refreshed,
// DefinitelyExpired or TransientFailure.
type Outcome interface {
	outcome()
}

// Refreshed carries the replacement token
type Refreshed struct {
	Token string
}

// DefinitelyExpired means the backend will not accept the token again
type DefinitelyExpired struct{}

// TransientFailure means the token's validity is unknown; it is kept
type TransientFailure struct {
	Err error
}

func (Refreshed) outcome()         {}
func (DefinitelyExpired) outcome() {}
func (TransientFailure) outcome()  {}
