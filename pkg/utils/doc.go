// Package utils provides small helpers for working with CQL identifiers.
package utils
