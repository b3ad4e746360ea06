package types

import (
	"fmt"

	"github.com/gnolang/cegar/internal/cfa"
)

// Property is a named reachability goal: none of its error locations may
// be reachable from the program entry.
type Property struct {
	Name   string
	Errors []cfa.Location
}

// Verdict is the outcome for one property.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictSafe
	VerdictViolated
)

func (v Verdict) String() string {
	switch v {
	case VerdictSafe:
		return "SAFE"
	case VerdictViolated:
		return "VIOLATED"
	default:
		return "UNKNOWN"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnknownReason explains an UNKNOWN verdict.
type UnknownReason string

const (
	ReasonNone            UnknownReason = ""
	ReasonBudgetExhausted UnknownReason = "budget-exhausted"
	ReasonInterrupted     UnknownReason = "interrupted"
	ReasonError           UnknownReason = "error"
	ReasonNoProgress      UnknownReason = "no-progress"
	ReasonRoundLimit      UnknownReason = "round-limit"
	ReasonRefineLimit     UnknownReason = "refinement-limit"
)

// ConfigurationError reports a malformed option or an incompatible
// combination of analysis components. It is raised before exploration starts.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "invalid configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid configuration %q: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConfigErrorf builds a ConfigurationError for key.
func ConfigErrorf(key, format string, args ...any) error {
	return &ConfigurationError{Key: key, Err: fmt.Errorf(format, args...)}
}
