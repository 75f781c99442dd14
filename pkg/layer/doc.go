// Package layer implements the session and layer-step controller that ties
// the path normalizer, snapshot/diff engine, archive writer/reader, and
// layer cache together into the layered filesystem engine: for each step, a
// Session drives either a cache lookup-and-replay or a snapshot-diff-
// archive-store sequence against its working directory.
package layer
