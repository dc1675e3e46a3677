package votes

import "errors"

var (
	// ErrUnauthenticated means no acting user id was available. The
	// service refuses to infer an identity; there is no anonymous vote.
	ErrUnauthenticated = errors.New("votes: no authenticated user")

	// ErrPostNotFound means the target post does not exist. Nothing was
	// written.
	ErrPostNotFound = errors.New("votes: post not found")

	// ErrInvalidValue means the raw vote value carried no direction.
	// A zero vote is rejected outright rather than being silently
	// mapped to a downvote.
	ErrInvalidValue = errors.New("votes: vote value must be positive or negative")

	// ErrLedgerWrite wraps any store failure other than the expected
	// duplicate-insert race. The transaction it came from was rolled
	// back, so no partial state is left behind.
	ErrLedgerWrite = errors.New("votes: ledger write failed")
)

// errWriteConflict tags the benign race where two concurrent votes by
// the same user collide: either both took the insert branch and one hit
// the vote table's primary key, or the row's value changed between the
// read and the conditional update. It never escapes CastVote; the
// losing transaction is retried once against the committed state.
var errWriteConflict = errors.New("votes: concurrent write on same (user, post)")
