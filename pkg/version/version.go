// Package version provides version information for the usdy-oracle binary.
package version

// Version is the current version of the usdy-oracle binary.
const Version = "0.2.0"

// AgentString returns the full agent string with versioning.
// Format: usdy-oracle/v{version}
func AgentString() string {
	return "usdy-oracle/v" + Version
}
