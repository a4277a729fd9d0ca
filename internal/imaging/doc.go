// Package imaging provides the pixel-level building blocks of the specimen
// pipeline: EXIF-aware loading, working-resolution normalization, and the
// grayscale, threshold, morphology, edge, contour and distance primitives the
// detectors are assembled from.
//
// All operations work with standard Go image types and use a coordinate system
// where (0,0) is at the top-left corner, X increases rightward, and Y increases
// downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive (top-left) and Max is exclusive
//     (bottom-right), matching image.Rectangle
//
// # Loading and Orientation
//
// Load decodes a file and applies its EXIF orientation (codes 2-8), so the
// returned pixels match what an image viewer displays. Orientation metadata is
// best effort: when it is missing or unreadable the image is returned as
// stored. Only an unreadable or undecodable file is an error (*LoadError).
//
// # Working Resolution
//
// Normalize bounds an image to a maximum dimension and returns a Scaled value
// carrying the factor that produced it. The factor is the only way back to
// original pixel space; nothing recomputes it from image sizes.
//
// # Masks
//
// Threshold, morphology, edge and contour functions operate on *image.Gray
// masks whose bounds start at (0,0). Foreground is 255, background 0.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and never modify their inputs, except Invert which flips the mask
// it is given.
//
// # Error Handling
//
// Functions return errors for:
//   - Missing or undecodable image files (*LoadError)
//   - Crop regions outside image bounds or empty
//   - Encoding and file publishing errors
package imaging
