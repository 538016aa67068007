package lock

import "errors"

// ErrNotHeld is returned when releasing a lock this instance does not
// hold, typically because the lease expired and another instance stole it.
var ErrNotHeld = errors.New("lock: not held")
