// Package api provides the kbase HTTP API for loading documents into
// collections and querying them.
package api

// DefaultBodyLimit bounds uploaded documents.
const DefaultBodyLimit = 16 << 20

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// BodyLimit is the maximum request body in bytes. Zero uses DefaultBodyLimit.
	BodyLimit int

	// DisableMCP skips mounting the MCP server at /mcp.
	DisableMCP bool
}
