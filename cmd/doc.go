// Package cmd implements the command-line interface of dotKV. It provides a
// hierarchical command structure with operations for running the server and
// working with a database as a client.
//
// The package is organized into several subpackages:
//
//   - db: Commands for database operations (get, set, add, push, keys, perf, etc.)
//   - serve: Commands for starting and configuring the dotKV server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dotkv -help for a list of all commands.
package cmd
