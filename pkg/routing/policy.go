package routing

import (
	"github.com/bft-labs/dbrouter/internal/domain"
	"github.com/bft-labs/dbrouter/pkg/classify"
)

// Mode aliases domain.Mode for callers that only import routing.
type Mode = domain.Mode

const (
	Implicit = domain.ModeImplicit
	Explicit = domain.ModeExplicit
)

// Operation describes one outgoing database operation.
// A nil *Operation means no textual form was available.
type Operation struct {
	// Text is the rendered statement, e.g. compiled SQL.
	Text string
}

// Op is shorthand for &Operation{Text: text}.
func Op(text string) *Operation {
	return &Operation{Text: text}
}

// Reason explains why a target was chosen.
type Reason int

const (
	ReasonOverride Reason = iota
	ReasonDirty
	ReasonModifying
	ReasonReadOnly
	ReasonExplicitDefault
	ReasonSingleTarget
	ReasonDegraded
)

// String returns the label used in logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonOverride:
		return "override"
	case ReasonDirty:
		return "dirty"
	case ReasonModifying:
		return "modifying"
	case ReasonReadOnly:
		return "read-only"
	case ReasonExplicitDefault:
		return "explicit-default"
	case ReasonSingleTarget:
		return "single-target"
	case ReasonDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one resolution.
type Decision struct {
	Target  string
	Reason  Reason
	Verdict domain.Verdict
}

// Policy resolves target names from session state and operation text.
// The zero value is an Implicit policy using the keyword classifier.
type Policy struct {
	mode       Mode
	classifier classify.Classifier
}

// New returns a policy for mode. A nil classifier uses classify.Keywords.
func New(mode Mode, c classify.Classifier) Policy {
	return Policy{mode: mode, classifier: c}
}

// Mode returns the policy variant.
func (p Policy) Mode() Mode {
	return p.mode
}

// Resolve returns the target for op under state. It does not mutate anything.
func (p Policy) Resolve(state domain.SessionState, op *Operation) Decision {
	if state.HasOverride() {
		return Decision{Target: state.Override, Reason: ReasonOverride}
	}

	switch p.mode {
	case Explicit:
		return Decision{Target: domain.WriterTarget, Reason: ReasonExplicitDefault}
	default:
		return p.resolveImplicit(state, op)
	}
}

// ResolveTarget is Resolve without the explanation.
func (p Policy) ResolveTarget(state domain.SessionState, op *Operation) string {
	return p.Resolve(state, op).Target
}

func (p Policy) resolveImplicit(state domain.SessionState, op *Operation) Decision {
	// a session that already wrote must read its own writes
	if state.Dirty {
		return Decision{Target: domain.WriterTarget, Reason: ReasonDirty}
	}
	if op == nil {
		return Decision{Target: domain.ReaderTarget, Reason: ReasonReadOnly}
	}

	verdict := p.classify(op.Text)
	if verdict == domain.VerdictModifying {
		return Decision{Target: domain.WriterTarget, Reason: ReasonModifying, Verdict: verdict}
	}
	return Decision{Target: domain.ReaderTarget, Reason: ReasonReadOnly, Verdict: verdict}
}

func (p Policy) classify(text string) domain.Verdict {
	if p.classifier == nil {
		return classify.Keywords{}.Classify(text)
	}
	return p.classifier.Classify(text)
}
