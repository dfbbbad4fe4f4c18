package panicfd

// Version is the current version of the panicfd module.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version of other crashship modules
// this module is compatible with.
const MinCompatibleVersion = "1.0.0"
