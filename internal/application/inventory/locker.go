package inventory

import (
	"context"

	"github.com/google/uuid"
)

// ProductLocker serializes read-decide-write spans on the same product.
// Acquire locks every product in a deterministic order and returns a function
// releasing all of them; on error nothing is held.
type ProductLocker interface {
	Acquire(ctx context.Context, productIDs []uuid.UUID) (release func(), err error)
}
