// Package daggerenv boots sandbox environments as Dagger containers.
//
// Each command runs as a WithExec on top of the previous container state, so
// files written by one command (node_modules after an install) are visible
// to the next. Non-zero exits are returned as exit codes, not errors.
package daggerenv
