// Package classify decides whether an outgoing database operation modifies data.
//
// The classifier is a heuristic, not a parser. It splits the operation text on
// whitespace, lower-cases every token and looks each one up in a fixed keyword
// set (update, delete, create, copy, insert, drop, alter). Any hit makes the
// operation [domain.VerdictModifying]; otherwise it is
// [domain.VerdictReadOnly].
//
// Matching is whole-token: "updates" does not match "update", and punctuation
// attached to a keyword ("(delete") prevents a match. False positives, such as
// a read-only query that mentions a keyword as a bare identifier, are accepted
// because they only send a read to the writer.
//
// [Keywords] is stateless and safe for concurrent use. [Cached] wraps any
// Classifier with a bounded LRU keyed by operation text, which pays off when
// the persistence layer renders the same statements over and over.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package classify
