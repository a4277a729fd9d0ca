// Package landmarks holds the landmark-side geometry of the pipeline:
// orientation canonicalization at dataset preparation and the mapping between
// the sparse landmark ids used by annotators and the dense zero-based indices
// a shape model trains on.
//
// # Placed Points
//
// A Point is placed when it is not skipped and both coordinates are
// non-negative. Unplaced points are carried through every operation untouched
// but never contribute to geometry (orientation, id intersection).
//
// # Orientation
//
// Orientation is decided by where the head landmark sits relative to the
// centroid of the other placed landmarks. Canonicalize mirrors a sample so
// that every training sample faces the same way; it must run exactly once per
// sample, since Mirror is its own inverse.
//
// # Id Mapping
//
// BuildIDMapping keeps only the ids placed in every sample and numbers them
// in ascending order. The mapping is written next to the dataset and read
// back at inference time to restore the annotator's ids on predictions.
package landmarks
