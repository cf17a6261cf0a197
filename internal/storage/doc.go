// Package storage persists scheduler state as opaque blobs keyed by name.
//
// The scheduler treats it as versionless key-value storage: a missing key is
// a first run, a malformed blob is corruption. Both degrade to an empty
// initial state at the call site; this package never interprets blob
// contents.
package storage
