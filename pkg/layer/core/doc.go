// Package core provides the data structures and algorithms shared by the
// layer archive and cache implementations: root-relative path normalization,
// directory snapshotting, and snapshot diffing. It does not provide
// facilities for archive encoding or cache storage, which are instead
// provided by the archive and cache packages, respectively.
package core
