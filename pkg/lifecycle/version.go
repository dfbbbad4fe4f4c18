package lifecycle

// Version is the current version of the lifecycle package.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version of dependent packages
// this package is compatible with.
const MinCompatibleVersion = "1.0.0"
