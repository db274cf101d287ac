// Package cmd implements the cqlward command line interface.
//
// The exit code communicates the failure class to CI pipelines: 1 for
// discovery and validation failures, 2 for drift and ordering violations, 3
// for lease contention, and 4 for a partially applied migration.
package cmd
