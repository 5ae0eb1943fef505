// Package server implements the MCP (Model Context Protocol) server for fiber
// diameter measurement.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr so they never corrupt the response stream.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load a micrograph and make it the active image
//   - fiber_quadrants: The four quadrants of the cropped image
//   - fiber_edge_detect: Canny edge map and contour boxes, for tuning
//   - fiber_analyze: Full measurement with summary and annotated preview
//
// The fiber_* tools take an optional path; without one they use the image
// from the last image_load. Cutoff and calibration default to the values in
// the configuration.
//
// # Image Caching
//
// Decoded images are cached by path for the lifetime of the process.
// image_load always re-reads the file so a micrograph replaced on disk is
// picked up.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string, e.g. "top-right quadrant (#1): no contours
//     detected in quadrant"
//
// # Usage
//
//	srv, err := server.New(server.WithConfig(cfg), server.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
