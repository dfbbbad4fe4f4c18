package crashship

import (
	"github.com/spoolworks/crashship/pkg/lifecycle"
	"github.com/spoolworks/crashship/pkg/log"
	"github.com/spoolworks/crashship/pkg/panicfd"
)

// Version is the version of the crashship module.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version of the sub-modules this
// module can work with.
const MinCompatibleVersion = "1.0.0"

// ModuleVersions returns the versions of all crashship sub-modules.
func ModuleVersions() map[string]string {
	return map[string]string{
		"crashship": Version,
		"log":       log.Version,
		"lifecycle": lifecycle.Version,
		"panicfd":   panicfd.Version,
	}
}

// CompatibilityMatrix returns the minimum compatible version for each
// sub-module.
func CompatibilityMatrix() map[string]string {
	return map[string]string{
		"crashship": MinCompatibleVersion,
		"log":       log.MinCompatibleVersion,
		"lifecycle": lifecycle.MinCompatibleVersion,
		"panicfd":   panicfd.MinCompatibleVersion,
	}
}
