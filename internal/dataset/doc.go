// Package dataset turns a project of annotated photographs into shape-model
// training data.
//
// A project directory holds:
//
//	images/            original photographs
//	labels/*.json      one annotation file per photograph
//	corrected_images/  EXIF-corrected, normalized PNGs (written by Prepare)
//	xml/               train_<tag>.xml and test_<tag>.xml
//	models/            predictor_<tag>.json
//	debug/             id mapping, orientation, box and split reports
//
// Prepare runs every photograph through the same loading, normalization and
// detection path that inference uses, so the box a model is trained on is
// the box it will be given later.
package dataset
