package dbrouter

import (
	"fmt"

	"github.com/bft-labs/dbrouter/pkg/classify"
	"github.com/bft-labs/dbrouter/pkg/log"
	"github.com/bft-labs/dbrouter/pkg/registry"
	"github.com/bft-labs/dbrouter/pkg/routing"
	"github.com/bft-labs/dbrouter/pkg/session"
)

// Version information for the dbrouter module.
const (
	Version              = "1.0.0"
	MinCompatibleVersion = "1.0.0"
)

// ModuleVersion pairs a sub-module's version with its minimum compatible version.
type ModuleVersion struct {
	Version    string
	MinVersion string
}

// ModuleVersions returns the versions of every sub-module the router is built from.
func ModuleVersions() map[string]ModuleVersion {
	return map[string]ModuleVersion{
		"log":      {log.Version, log.MinCompatibleVersion},
		"classify": {classify.Version, classify.MinCompatibleVersion},
		"routing":  {routing.Version, routing.MinCompatibleVersion},
		"registry": {registry.Version, registry.MinCompatibleVersion},
		"session":  {session.Version, session.MinCompatibleVersion},
	}
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	for name, m := range ModuleVersions() {
		if !isVersionCompatible(m.Version, m.MinVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.Version, m.MinVersion)
		}
	}
	return nil
}

// isVersionCompatible reports whether version >= minVersion, both "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
