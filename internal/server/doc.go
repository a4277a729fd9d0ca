// Package server implements the MCP (Model Context Protocol) server for the
// specimen geometry tools.
//
// This package provides a JSON-RPC 2.0 server that exposes specimen detection,
// dataset preparation, model training and landmark inference through the MCP
// protocol.
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
// Image Information:
//   - specimen_load: Load a photograph with EXIF orientation applied
//
// Detection:
//   - specimen_detect: Box of the single specimen, never empty
//   - specimen_detect_multi: Boxes of every specimen, possibly none
//   - specimen_crop: Crop of the detected specimen
//   - detection_check: Detection availability and strategies
//
// Dataset and Model:
//   - dataset_prepare: Build train/test sets and debug artifacts for a tag
//   - model_train: Train the landmark model of a tag
//   - model_evaluate: Pixel and normalized errors of a trained model
//
// Inference:
//   - landmarks_predict: Landmarks on a photograph in original pixels
//   - pipeline_debug: Training versus inference geometry per label
//   - history: Recorded predictions and training runs
//
// # Image Caching
//
// Images read by the detection tools are cached by path for the lifetime of
// the server process. Dataset preparation and inference read their files
// directly so both see exactly the bytes on disk.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(cfg, history, log)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
