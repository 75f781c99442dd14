// Package cache provides content-addressed, on-disk storage for layer
// archives, keyed by the caller-supplied input hash of the step that
// produced them.
package cache
