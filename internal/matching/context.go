package matching

import (
	"context"

	"github.com/google/uuid"
)

type jobIDKey struct{}

// WithJobID tags ctx with the dispatcher job running the engine so activity
// entries can point back to it.
func WithJobID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

func JobIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(jobIDKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

type failureOwnedKey struct{}

// WithFailureOwned marks ctx as run by a caller that writes its own timeline
// entry once the run has failed for good. The engine then skips its
// per-attempt auto-match-failed entry.
func WithFailureOwned(ctx context.Context) context.Context {
	return context.WithValue(ctx, failureOwnedKey{}, true)
}

// FailureOwned reports whether ctx was marked by WithFailureOwned.
func FailureOwned(ctx context.Context) bool {
	owned, _ := ctx.Value(failureOwnedKey{}).(bool)
	return owned
}
