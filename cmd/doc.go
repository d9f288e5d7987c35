// Package cmd implements the command-line interface for the dREST server.
// It provides a hierarchical command structure for running and upgrading
// the server.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dREST server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See drest -help for a list of all commands.
package cmd
