package repo

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or does not
	// satisfy the liveness filter of the query.
	ErrNotFound = errors.New("record not found")
	// ErrLiveChallengeExists is returned by CreateChallenge when an
	// unexpired challenge for the phone already exists.
	ErrLiveChallengeExists = errors.New("live otp challenge exists")
)
