// Package server implements the MCP (Model Context Protocol) server for the coin
// counter.
//
// The server exposes the detection pipeline as JSON-RPC 2.0 tools so that MCP
// clients can count coins in photographs and inspect the intermediate stages.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load image and get metadata
//   - coins_detect: Find, classify and value the coins in an image
//   - coins_candidates: Ellipse candidates only, without classification
//   - coins_edge_map: Binary edge map as base64 PNG
//   - coins_annotate: Annotated image as base64 PNG
//   - coins_history: Recent recorded runs (needs a history database)
//
// # Image Caching
//
// Images are cached by path and reused across tool calls for the lifetime of
// the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure), -32602 (malformed tools/call
//     params) or -32601 (unknown method)
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(detector, server.WithHistory(history))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
