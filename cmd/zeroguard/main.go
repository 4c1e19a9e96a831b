// Zeroguard is an HTTP/1.1 echo and upload server that closes connections
// whose request body degenerates into an endless run of zero-length reads.
//
// Usage:
//
//	# Serve with defaults and environment overrides
//	zeroguard serve
//
//	# Serve with a configuration file (YAML or TOML)
//	zeroguard serve --config /etc/zeroguard/zeroguard.yaml
//
//	# Print the effective configuration
//	zeroguard config --config zeroguard.toml
//
//	# Show version information
//	zeroguard version
package main

func main() {
	Execute()
}
