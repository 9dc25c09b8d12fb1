package antiflap

import "errors"

// ErrVersionConflict names an optimistic-concurrency version conflict.
// Apply does not return it: Apply retries a failed compare-and-swap itself,
// up to maxCASRetries times, and then returns ErrCASExhausted.
var ErrVersionConflict = errors.New("antiflap: version conflict")

// ErrCASExhausted is returned when all retries are spent.
var ErrCASExhausted = errors.New("antiflap: optimistic concurrency retries exhausted")
