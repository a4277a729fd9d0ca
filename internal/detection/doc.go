// Package detection locates specimens in photographs and returns bounding
// boxes in original image coordinates.
//
// Two modes share the same primitives and the same coordinate contract:
//
//   - Single-specimen (Detector.Detect): one box for the dominant subject,
//     always returned, with a fixed center-crop fallback when no candidate is
//     confident enough.
//   - Multi-specimen (Detector.DetectMulti): zero or more boxes, suppressed by
//     IoU and ordered top-to-bottom, left-to-right.
//
// # Algorithm Overview
//
// Both modes follow the same pipeline:
//
//  1. Normalize: bound the image to a working resolution and keep the factor
//  2. Candidates: run a fixed, ordered list of segmentation strategies
//     (edges, Otsu, saliency, adaptive threshold, saturation, k-means,
//     watershed) and collect the outer regions of each mask
//  3. Select: score and keep the best (single) or filter and suppress (multi)
//  4. Rescale: map back with the recorded factor, add a margin, clamp
//
// Strategies are best effort. One that fails on degenerate input contributes
// no candidates; it never fails the detection.
//
// # Coordinate Spaces
//
// WorkingBox values live in working-resolution space and Box values in
// original pixel space. Rescale is the only conversion, and it takes the
// imaging.Scaled value produced during normalization, so the factor used to
// map a box back is always the one that produced the working image.
//
// # Determinism
//
// Detection has no hidden randomness. K-means seeding uses the configured
// seed, candidate pools are built in strategy order, and ties are broken by
// that order. The same image and configuration always give the same boxes.
//
// # Tuning
//
// The defaults in config.DefaultDetection (20 px margin, 8-85% single-mode
// area window, 2-60% multi-mode window, 0.3 IoU) were tuned empirically on
// specimens photographed against plain backgrounds. They are configuration,
// not constants of nature; re-tune them for other material.
package detection
