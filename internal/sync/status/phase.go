package status

import "fmt"

// Phase is the position of a sync cycle.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhasePushing
	PhasePulling
	PhaseIntegrating
	PhaseProcessingDerived
	PhaseDone
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePushing:
		return "pushing"
	case PhasePulling:
		return "pulling"
	case PhaseIntegrating:
		return "integrating"
	case PhaseProcessingDerived:
		return "processing_derived"
	case PhaseDone:
		return "done"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// ParsePhase is the inverse of String.
func ParsePhase(s string) (Phase, error) {
	for p := PhaseIdle; p <= PhaseError; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return PhaseIdle, fmt.Errorf("unknown sync phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	parsed, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Terminal reports whether the cycle has ended.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError
}

// CanTransition reports whether a cycle may move from p to to.
// Phases only move forward; any running phase may fail.
func (p Phase) CanTransition(to Phase) bool {
	switch p {
	case PhaseIdle:
		return to == PhasePushing || to == PhaseError
	case PhasePushing:
		return to == PhasePulling || to == PhaseError
	case PhasePulling:
		return to == PhaseIntegrating || to == PhaseError
	case PhaseIntegrating:
		return to == PhaseProcessingDerived || to == PhaseError
	case PhaseProcessingDerived:
		return to == PhaseDone || to == PhaseError
	default:
		return false
	}
}
