package domain

// Verdict is the classifier's answer for one operation.
type Verdict int

const (
	// VerdictUnknown means no operation text was available.
	VerdictUnknown Verdict = iota
	VerdictReadOnly
	VerdictModifying
)

// String returns a human-readable representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictReadOnly:
		return "read-only"
	case VerdictModifying:
		return "modifying"
	default:
		return "unknown"
	}
}
