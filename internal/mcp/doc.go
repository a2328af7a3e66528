// Package mcp exposes the thought memory over the Model Context Protocol.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers tools for parsing, storing, retrieving, and reflecting over
// tagged reasoning. Tools call the internal services directly and run on a
// stdio transport, so an agent runtime can speak to the memory without the
// HTTP surface.
package mcp
