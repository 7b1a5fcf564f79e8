package movement

import (
	"fmt"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = fmt.Errorf("movement: %w", shared.ErrNotFound)
	// ErrValidation indicates malformed input.
	ErrValidation = fmt.Errorf("movement: %w", shared.ErrValidation)
	// ErrInvalidState indicates the action is not allowed from the current status.
	ErrInvalidState = fmt.Errorf("movement: %w", shared.ErrInvalidState)
	// ErrConflict indicates a concurrent transition or a duplicate code.
	ErrConflict = fmt.Errorf("movement: %w", shared.ErrConflict)
	// ErrActorRequired indicates a write without an acting user.
	ErrActorRequired = fmt.Errorf("movement: actor required: %w", shared.ErrForbidden)
)
