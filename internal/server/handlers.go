package server

import (
	"context"
	"errors"
	"fmt"
	"image"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
	"github.com/ironsheep/specimen-tools-mcp/internal/pipeline"
	"github.com/ironsheep/specimen-tools-mcp/internal/shape"
	"github.com/ironsheep/specimen-tools-mcp/internal/store"
)

// ErrHistoryDisabled is returned by the history tool when no database is
// configured.
var ErrHistoryDisabled = errors.New("history is disabled; set SPECIMEN_HISTORY_DB")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "specimen_detect", "model_train").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithFields(logrus.Fields{"tool": params.Name}).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	// Image Information
	case "specimen_load":
		return s.handleSpecimenLoad(args)

	// Detection
	case "specimen_detect":
		return s.handleSpecimenDetect(args)
	case "specimen_detect_multi":
		return s.handleSpecimenDetectMulti(args)
	case "specimen_crop":
		return s.handleSpecimenCrop(args)
	case "detection_check":
		return detection.Available(), nil

	// Dataset and Model
	case "dataset_prepare":
		return s.handleDatasetPrepare(ctx, args)
	case "model_train":
		return s.handleModelTrain(ctx, args)
	case "model_evaluate":
		return s.handleModelEvaluate(args)

	// Inference
	case "landmarks_predict":
		return s.handleLandmarksPredict(ctx, args)
	case "pipeline_debug":
		return s.handlePipelineDebug(ctx, args)
	case "history":
		return s.handleHistory(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments leave v at its
// zero value.
func decodeArgs(args jsoniter.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// layout resolves the project directory of a tool call.
func (s *Server) layout(root string) (dataset.Layout, error) {
	if root == "" {
		root = s.cfg.ProjectRoot
	}
	if root == "" {
		return dataset.Layout{}, errors.New("project_root is required")
	}
	return dataset.NewLayout(root)
}

func (s *Server) overlay(img image.Image, boxes []image.Rectangle, marks []imaging.OverlayMark) (*imaging.OverlayResult, error) {
	return imaging.Overlay(img, boxes, marks, s.cfg.Server.BoxColor, s.cfg.Server.MarkColor)
}

// === Image Information Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleSpecimenLoad(args jsoniter.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Detection Handlers ===

type detectArgs struct {
	Path    string `json:"path"`
	Overlay bool   `json:"overlay"`
}

// DetectResult is the specimen_detect reply.
type DetectResult struct {
	detection.Result
	Overlay *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleSpecimenDetect(args jsoniter.RawMessage) (interface{}, error) {
	var a detectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	l, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	out := &DetectResult{Result: s.detector.Detect(l.Image)}
	if a.Overlay {
		if out.Overlay, err = s.overlay(l.Image, []image.Rectangle{out.Box.Rect()}, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DetectMultiResult is the specimen_detect_multi reply.
type DetectMultiResult struct {
	detection.MultiResult
	Overlay *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleSpecimenDetectMulti(args jsoniter.RawMessage) (interface{}, error) {
	var a detectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	l, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	out := &DetectMultiResult{MultiResult: s.detector.DetectMulti(l.Image)}
	if a.Overlay {
		boxes := make([]image.Rectangle, len(out.Detections))
		for i, d := range out.Detections {
			boxes[i] = d.Box.Rect()
		}
		if out.Overlay, err = s.overlay(l.Image, boxes, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type cropArgs struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale"`
}

// CropResult is the specimen_crop reply.
type CropResult struct {
	Box      detection.Box       `json:"box"`
	Method   detection.Method    `json:"method"`
	Fallback bool                `json:"fallback"`
	Crop     *imaging.CropResult `json:"crop"`
}

func (s *Server) handleSpecimenCrop(args jsoniter.RawMessage) (interface{}, error) {
	var a cropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	l, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	det := s.detector.Detect(l.Image)
	crop, err := imaging.Crop(l.Image, det.Box.Rect(), a.Scale)
	if err != nil {
		return nil, err
	}
	return &CropResult{Box: det.Box, Method: det.Method, Fallback: det.Fallback, Crop: crop}, nil
}

// === Dataset and Model Handlers ===

type projectArgs struct {
	Tag         string `json:"tag"`
	ProjectRoot string `json:"project_root"`
}

func (s *Server) handleDatasetPrepare(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a projectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	layout, err := s.layout(a.ProjectRoot)
	if err != nil {
		return nil, err
	}

	res, err := s.preparer.Prepare(ctx, layout, a.Tag)
	if err != nil {
		return nil, err
	}
	pipeline.RecordRun(ctx, s.history, pipeline.PrepareRun(a.Tag, res), res, s.log)
	return res, nil
}

type modelTrainArgs struct {
	projectArgs
	Options map[string]interface{} `json:"options"`
}

func (s *Server) handleModelTrain(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a modelTrainArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	layout, err := s.layout(a.ProjectRoot)
	if err != nil {
		return nil, err
	}

	res, err := shape.TrainProject(layout, a.Tag, nil, a.Options, s.log)
	if err != nil {
		return nil, err
	}
	pipeline.RecordRun(ctx, s.history, pipeline.TrainRun(a.Tag, res), res, s.log)
	return res, nil
}

type modelEvaluateArgs struct {
	projectArgs
	Split string `json:"split"`
}

func (s *Server) handleModelEvaluate(args jsoniter.RawMessage) (interface{}, error) {
	var a modelEvaluateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	layout, err := s.layout(a.ProjectRoot)
	if err != nil {
		return nil, err
	}
	return shape.EvaluateProject(layout, a.Tag, a.Split)
}

// === Inference Handlers ===

type predictArgs struct {
	projectArgs
	Path    string `json:"path"`
	Overlay bool   `json:"overlay"`
}

// PredictResult is the landmarks_predict reply.
type PredictResult struct {
	*pipeline.Prediction
	Overlay *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleLandmarksPredict(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a predictArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	layout, err := s.layout(a.ProjectRoot)
	if err != nil {
		return nil, err
	}

	res, err := s.pipeline.Predict(ctx, layout, a.Tag, a.Path)
	if err != nil {
		return nil, err
	}
	out := &PredictResult{Prediction: res}
	if !a.Overlay {
		return out, nil
	}

	l, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	marks := make([]imaging.OverlayMark, len(res.Landmarks))
	for i, lm := range res.Landmarks {
		marks[i] = imaging.OverlayMark{X: float64(lm.X), Y: float64(lm.Y), Label: lm.ID}
	}
	if out.Overlay, err = s.overlay(l.Image, []image.Rectangle{res.DetectedBox.Rect()}, marks); err != nil {
		return nil, err
	}
	return out, nil
}

type debugArgs struct {
	projectArgs
	TestImage string `json:"test_image"`
}

func (s *Server) handlePipelineDebug(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a debugArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	layout, err := s.layout(a.ProjectRoot)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Debug(ctx, layout, a.Tag, a.TestImage)
}

type historyArgs struct {
	Kind  string `json:"kind"`
	Tag   string `json:"tag"`
	Limit int    `json:"limit"`
}

// HistoryResult is the history reply. Exactly one of the lists is set.
type HistoryResult struct {
	Kind        string              `json:"kind"`
	Predictions []store.Prediction  `json:"predictions,omitempty"`
	Runs        []store.TrainingRun `json:"runs,omitempty"`
}

func (s *Server) handleHistory(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a historyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}

	switch a.Kind {
	case "", "predictions":
		preds, err := s.history.RecentPredictions(ctx, a.Tag, a.Limit)
		if err != nil {
			return nil, err
		}
		return &HistoryResult{Kind: "predictions", Predictions: preds}, nil
	case "training":
		runs, err := s.history.TrainingRuns(ctx, a.Tag)
		if err != nil {
			return nil, err
		}
		return &HistoryResult{Kind: "training", Runs: runs}, nil
	default:
		return nil, fmt.Errorf("invalid kind %q: want predictions or training", a.Kind)
	}
}
