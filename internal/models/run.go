package models

// RunPhase is the state of a batch run
type RunPhase string

const (
	PhaseIdle       RunPhase = "idle"
	PhaseScanning   RunPhase = "scanning"
	PhaseProcessing RunPhase = "processing"
	PhaseReporting  RunPhase = "reporting"
	PhaseDone       RunPhase = "done"
)

// CanTransitionTo checks if a phase transition is valid
// Valid transitions:
//
//	idle -> scanning
//	scanning -> processing | done (input directory rejected)
//	processing -> reporting
//	reporting -> done
func (p RunPhase) CanTransitionTo(next RunPhase) bool {
	switch p {
	case PhaseIdle:
		return next == PhaseScanning
	case PhaseScanning:
		return next == PhaseProcessing || next == PhaseDone
	case PhaseProcessing:
		return next == PhaseReporting
	case PhaseReporting:
		return next == PhaseDone
	case PhaseDone:
		return false // Terminal state
	default:
		return false
	}
}

// ErrorType classifies errors for retry strategy
type ErrorType string

const (
	ErrorTypeTransient    ErrorType = "transient"     // Network, 429, 5xx gateway errors - automatic retry
	ErrorTypeNonTransient ErrorType = "non_transient" // Other 4xx/5xx - returned as-is
)

// DefaultRetryableStatuses are the HTTP codes retried when the config names none
var DefaultRetryableStatuses = []int{429, 500, 502, 503, 504}
