package shape

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options are shape-predictor training parameters. Field names follow the
// tree-ensemble trainer's option names so overrides can be passed through
// verbatim.
//
// Options only shape a tree-ensemble Trainer supplied by the caller.
// MeanShapeTrainer has no tunable parameters: it stores the options on the
// Model and in the training reports so a run can be reproduced with such a
// trainer, and its output does not depend on them.
type Options struct {
	TreeDepth                     int     `json:"tree_depth" validate:"gt=0"`
	CascadeDepth                  int     `json:"cascade_depth" validate:"gt=0"`
	Nu                            float64 `json:"nu" validate:"gt=0,lte=1"`
	FeaturePoolSize               int     `json:"feature_pool_size" validate:"gt=0"`
	NumTreesPerCascadeLevel       int     `json:"num_trees_per_cascade_level" validate:"gt=0"`
	NumTestSplits                 int     `json:"num_test_splits" validate:"gt=0"`
	OversamplingAmount            int     `json:"oversampling_amount" validate:"gt=0"`
	OversamplingTranslationJitter float64 `json:"oversampling_translation_jitter" validate:"gte=0"`
	FeaturePoolRegionPadding      float64 `json:"feature_pool_region_padding"`
	LambdaParam                   float64 `json:"lambda_param" validate:"gt=0"`
	RandomSeed                    string  `json:"random_seed"`
	NumThreads                    int     `json:"num_threads" validate:"gte=0"`
}

// DefaultOptions returns options tuned for a training set of numImages
// images: under 10 is tiny, under 50 small, anything else large. Smaller
// sets get shallower trees and more regularization.
func DefaultOptions(numImages int) Options {
	tiny := numImages < 10
	small := numImages < 50

	o := Options{
		TreeDepth:                     4,
		CascadeDepth:                  12,
		Nu:                            0.1,
		FeaturePoolSize:               300,
		NumTreesPerCascadeLevel:       300,
		NumTestSplits:                 15,
		OversamplingAmount:            20,
		OversamplingTranslationJitter: 0.02,
		FeaturePoolRegionPadding:      0.1,
		LambdaParam:                   0.1,
		RandomSeed:                    "42",
		NumThreads:                    runtime.NumCPU(),
	}
	switch {
	case tiny:
		o.TreeDepth = 2
		o.CascadeDepth = 6
		o.Nu = 0.3
		o.FeaturePoolSize = 200
		o.NumTreesPerCascadeLevel = 50
		o.NumTestSplits = 10
		o.OversamplingAmount = 50
		o.OversamplingTranslationJitter = 0.1
		o.LambdaParam = 0.2
	case small:
		o.TreeDepth = 3
		o.CascadeDepth = 8
		o.Nu = 0.2
		o.NumTreesPerCascadeLevel = 100
		o.OversamplingAmount = 30
		o.OversamplingTranslationJitter = 0.05
	}
	return o
}

// Apply overrides fields by their JSON name. Keys that name no option are
// ignored, like unknown attributes on the trainer's option object. It
// returns the applied keys in sorted order.
func (o *Options) Apply(overrides map[string]any) ([]string, error) {
	if len(overrides) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}

	var applied []string
	for k, v := range overrides {
		if _, ok := fields[k]; !ok {
			continue
		}
		fields[k] = v
		applied = append(applied, k)
	}
	sort.Strings(applied)

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	next := *o
	if err := json.Unmarshal(merged, &next); err != nil {
		return nil, fmt.Errorf("invalid option override: %w", err)
	}
	if err := validator.New().Struct(next); err != nil {
		return nil, fmt.Errorf("invalid option override: %w", err)
	}
	*o = next
	return applied, nil
}
