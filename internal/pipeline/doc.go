// Package pipeline applies a trained shape model to new photographs and
// checks that inference sees the same geometry training did.
//
// Inference repeats the preparation path exactly: EXIF-aware load,
// normalization to the dataset dimension, single-specimen detection on the
// normalized image. Only then are predictions mapped back to the caller's
// pixel space and dense indices translated back to annotator ids.
package pipeline
