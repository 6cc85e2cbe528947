package classify

import (
	"strings"

	"github.com/bft-labs/dbrouter/internal/domain"
)

// Classifier inspects operation text and returns a verdict.
// Implementations must be total: any string yields a verdict, never a panic.
type Classifier interface {
	Classify(text string) domain.Verdict
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(text string) domain.Verdict

// Classify calls f(text).
func (f ClassifierFunc) Classify(text string) domain.Verdict {
	return f(text)
}

// modifyingKeywords are the data-modification literals, lower-case.
var modifyingKeywords = map[string]struct{}{
	"update": {},
	"delete": {},
	"create": {},
	"copy":   {},
	"insert": {},
	"drop":   {},
	"alter":  {},
}

// ModifyingKeywords returns the keyword set in a fixed order.
func ModifyingKeywords() []string {
	return []string{"update", "delete", "create", "copy", "insert", "drop", "alter"}
}

// Keywords is the default whitespace-token classifier.
type Keywords struct{}

// Classify implements Classifier.
func (Keywords) Classify(text string) domain.Verdict {
	if IsModifying(text) {
		return domain.VerdictModifying
	}
	return domain.VerdictReadOnly
}

// IsModifying reports whether any whitespace-separated token of text is a
// data-modification keyword.
func IsModifying(text string) bool {
	for _, tok := range strings.Fields(text) {
		// keywords are at most 6 bytes; skip the allocation in ToLower for longer tokens
		if len(tok) > 6 {
			continue
		}
		if _, ok := modifyingKeywords[strings.ToLower(tok)]; ok {
			return true
		}
	}
	return false
}

// Default returns the package default classifier.
func Default() Classifier {
	return Keywords{}
}
