// Package shape trains and applies landmark shape models.
//
// A shape model receives an image and a specimen box and returns the dense,
// zero-based landmark parts it was trained with. Trainer and Predictor are
// the seams for a model implementation; this package ships MeanShapeTrainer,
// a deterministic baseline that learns the mean box-relative position of each
// part.
//
// Options carry the tree-ensemble training parameters, tiered by dataset
// size, so an ensemble implementation can slot in behind Trainer with the
// same persisted parameters and reports.
package shape
