package routing

// Version information for the routing module.
const (
	// Version is the current version of the routing module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)
