package detection

import (
	"errors"
	"fmt"
)

// ErrApplicationNotFound is returned when the application to examine does
// not exist.
var ErrApplicationNotFound = errors.New("application not found")

// ErrNoModelStore is returned by Retrain when no model store is configured.
var ErrNoModelStore = errors.New("similarity model store not configured")

// Pseudo detector names used in DetectionFailed for failures outside a
// detector.
const (
	StageLock    = "lock"
	StageLoad    = "load"
	StagePersist = "persist"
)

// DetectionFailed reports a detection run that was rolled back. Nothing of
// the run was persisted.
type DetectionFailed struct {
	ApplicationID uint
	// Detector is the failing detector's name or one of the Stage values.
	Detector string
	Cause    error
}

func (e *DetectionFailed) Error() string {
	return fmt.Sprintf("detection failed for application %d in %s: %v", e.ApplicationID, e.Detector, e.Cause)
}

func (e *DetectionFailed) Unwrap() error { return e.Cause }
