package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathProperty is the schema of the image path argument shared by most tools.
var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

// projectProperties are the schema entries of the dataset and model tools.
func projectProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"tag": map[string]interface{}{
			"type":        "string",
			"description": "Model tag, e.g. \"v1\". Letters, digits, '-', '_' and '.'",
		},
		"project_root": map[string]interface{}{
			"type":        "string",
			"description": "Project directory holding images/ and labels/. Defaults to the configured project root",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "specimen_load",
			Description: "Load a specimen photograph with its EXIF orientation applied and return display and stored dimensions, orientation code and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "specimen_detect",
			Description: "Find the bounding box of the single specimen in a photograph. Always returns a box; when no candidate is confident enough the box is a fixed center crop and fallback is true.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the photograph with the box drawn, as base64 PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "specimen_detect_multi",
			Description: "Find every specimen in a photograph of several. Returns a possibly empty list of boxes ordered top-to-bottom, then left-to-right.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the photograph with all boxes drawn, as base64 PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "specimen_crop",
			Description: "Detect the single specimen and return the cropped box as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor for the crop. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "detection_check",
			Description: "Report whether specimen detection is available and which strategies it runs.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Dataset and Model
		{
			Name:        "dataset_prepare",
			Description: "Build the training and test sets of a project: normalize every labelled photograph, detect its box, canonicalize orientation, keep the landmarks common to all samples and split with a fixed seed.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": projectProperties(nil),
				"required":   []string{"tag"},
			},
		},
		{
			Name:        "model_train",
			Description: "Train the landmark model of a prepared tag and report train and test errors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": projectProperties(map[string]interface{}{
					"options": map[string]interface{}{
						"type":        "object",
						"description": "Training option overrides, e.g. {\"tree_depth\": 3}",
					},
				}),
				"required": []string{"tag"},
			},
		},
		{
			Name:        "model_evaluate",
			Description: "Evaluate a trained model on its train or test set: pixel and normalized errors per image and per landmark.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": projectProperties(map[string]interface{}{
					"split": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"train", "test"},
						"description": "Which set to evaluate. Default test",
						"default":     "test",
					},
				}),
				"required": []string{"tag"},
			},
		},

		// Inference
		{
			Name:        "landmarks_predict",
			Description: "Place the landmarks of a trained model on a photograph. Coordinates are original pixels and ids are the annotator's ids.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": projectProperties(map[string]interface{}{
					"path": pathProperty,
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the photograph with box and landmarks drawn, as base64 PNG",
						"default":     false,
					},
				}),
				"required": []string{"tag", "path"},
			},
		},
		{
			Name:        "pipeline_debug",
			Description: "Trace each labelled photograph through training and inference geometry: EXIF rotation, training versus inference box, and per-landmark error against the annotation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": projectProperties(map[string]interface{}{
					"test_image": map[string]interface{}{
						"type":        "string",
						"description": "Optional photograph to use on the inference side instead of each label's own",
					},
				}),
				"required": []string{"tag"},
			},
		},
		{
			Name:        "history",
			Description: "List recorded predictions (newest first) or training runs (oldest first).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"kind": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"predictions", "training"},
						"description": "Which log to read. Default predictions",
						"default":     "predictions",
					},
					"tag": map[string]interface{}{
						"type":        "string",
						"description": "Optional model tag filter",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum predictions to return (default 50)",
						"default":     50,
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
