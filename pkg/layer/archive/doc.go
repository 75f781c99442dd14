// Package archive streams layer diffs into POSIX-extended ("pax") tar
// archives and applies such archives back onto a target directory,
// following the OCI image-layer whiteout convention for deletions.
package archive
