package record

import (
	"fmt"
	"strings"
)

// OCMState is the lifecycle state of a cluster as reported by the cluster
// management service. The zero value means the state was not recorded.
type OCMState string

const (
	StateValidating   OCMState = "validating"
	StateWaiting      OCMState = "waiting"
	StatePending      OCMState = "pending"
	StateInstalling   OCMState = "installing"
	StateReady        OCMState = "ready"
	StateError        OCMState = "error"
	StateUninstalling OCMState = "uninstalling"
	StateUnknown      OCMState = "unknown"
	StatePoweringDown OCMState = "powering_down"
	StateResuming     OCMState = "resuming"
	StateHibernating  OCMState = "hibernating"
)

var ocmStates = []OCMState{
	StateValidating, StateWaiting, StatePending, StateInstalling, StateReady,
	StateError, StateUninstalling, StateUnknown, StatePoweringDown,
	StateResuming, StateHibernating,
}

// OCMStates returns every member of the closed lifecycle set.
func OCMStates() []OCMState {
	out := make([]OCMState, len(ocmStates))
	copy(out, ocmStates)
	return out
}

// ParseOCMState matches s case-insensitively against the closed set.
func ParseOCMState(s string) (OCMState, error) {
	v := OCMState(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range ocmStates {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOCMState, s)
}

// IsTransient reports whether s is a non-steady state such as installing
// or validating. An unrecorded state is not transient.
func IsTransient(s OCMState) bool {
	switch s {
	case "", StateReady, StateError, StateUninstalling, StateHibernating:
		return false
	default:
		return true
	}
}

// InFlightState is the state of one asynchronous in-flight check.
type InFlightState string

const (
	InFlightPending InFlightState = "pending"
	InFlightRunning InFlightState = "running"
	InFlightPassed  InFlightState = "passed"
	InFlightFailed  InFlightState = "failed"
)

var inFlightStates = []InFlightState{InFlightPending, InFlightRunning, InFlightPassed, InFlightFailed}

// ParseInFlightState matches s case-insensitively against the closed set.
func ParseInFlightState(s string) (InFlightState, error) {
	v := InFlightState(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range inFlightStates {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInFlightState, s)
}
