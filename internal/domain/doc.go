// Package domain contains the core domain types for dbrouter.
//
// This package is the innermost layer of the router. It has no dependencies
// on infrastructure concerns (database drivers, logging, configuration files)
// and holds only the vocabulary shared by every other package.
//
// # Types
//
//   - [Mode]: the deployment-wide routing policy selection (implicit or explicit)
//   - [Verdict]: the classifier's answer for one operation (modifying or read-only)
//   - [SessionState]: the per-session routing signals (override target, dirty flag)
//
// # Well-known targets
//
// [WriterTarget] names the authoritative connection and must exist in every
// registry. [ReaderTarget] names the replica used for read scale-out.
package domain
