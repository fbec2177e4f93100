package eventstore

import "errors"

// Failure taxonomy from spec section 4.1/7. Callers map these to
// application error codes; the store itself never knows about HTTP
// status codes.
var (
	ErrInvalidAggregateID = errors.New("INVALID_AGGREGATE_ID")
	ErrConcurrencyConflict = errors.New("CONCURRENCY_CONFLICT")
	ErrDuplicateEvent     = errors.New("DUPLICATE_EVENT")
	ErrEventSaveFailed    = errors.New("EVENT_SAVE_FAILED")
	ErrEventLookupFailed  = errors.New("EVENT_LOOKUP_FAILED")
	ErrRehydrationFailed  = errors.New("REHYDRATION_FAILED")
	ErrOperationTimeout   = errors.New("OPERATION_TIMEOUT")
)
