// Package docker runs temporary Cassandra instances for developing and
// rehearsing migrations.
//
// Container wraps the testcontainers Cassandra module for a throwaway node
// with dynamic ports, used by integration tests and the dev server. Engine is
// a thin layer over the Docker API for the dev workflow's named, long-lived
// container: a fixed name and a stable host port so repeated cqlward runs
// target the same node.
package docker
