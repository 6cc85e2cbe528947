// Package registry maps logical target names to connection handles.
//
// A [Registry] is built once from host configuration and is immutable
// afterwards; replacing it means building a new session factory. Every
// registry must contain a "writer" entry. A registry holding only the writer
// is a single-target registry and routing is skipped for it entirely.
//
// Registries are generic over the handle type so the routing core never needs
// to know what a connection is. The router in package dbrouter uses *sql.DB;
// the CLI's dry-run mode uses the DSN strings themselves.
//
// # Sources
//
// Sessions read the registry through a [Source] at resolution time. A
// [Holder] is the usual source: it serves one registry until it is revoked,
// after which it reports [domain.ErrConfigurationUnavailable] and, if one was
// configured, offers a fallback handle for degraded-mode operation.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package registry
