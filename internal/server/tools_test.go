package server

import (
	"context"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	want := map[string]bool{
		"specimen_load":         true,
		"specimen_detect":       true,
		"specimen_detect_multi": true,
		"specimen_crop":         true,
		"detection_check":       true,
		"dataset_prepare":       true,
		"model_train":           true,
		"model_evaluate":        true,
		"landmarks_predict":     true,
		"pipeline_debug":        true,
		"history":               true,
	}
	if len(tools) != len(want) {
		t.Errorf("got %d tools, want %d", len(tools), len(want))
	}

	seen := make(map[string]bool)
	for _, tool := range tools {
		t.Run(tool.Name, func(t *testing.T) {
			if !want[tool.Name] {
				t.Errorf("unexpected tool %s", tool.Name)
			}
			if seen[tool.Name] {
				t.Errorf("duplicate tool %s", tool.Name)
			}
			seen[tool.Name] = true

			if tool.Description == "" {
				t.Error("empty description")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("schema type: got %v, want object", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("schema has no properties map")
			}
			required, _ := tool.InputSchema["required"].([]string)
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("required %q missing from properties", r)
				}
			}
		})
	}
}

func TestToolDefinitions_AllDispatch(t *testing.T) {
	s := newTestServer(t)
	for _, tool := range GetToolDefinitions() {
		_, err := s.executeTool(context.Background(), tool.Name, nil)
		if err != nil && err.Error() == "unknown tool: "+tool.Name {
			t.Errorf("tool %s is listed but not dispatched", tool.Name)
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1})
	tools, ok := resp.Result.(map[string]interface{})["tools"].([]Tool)
	if !ok {
		t.Fatalf("tools/list result has no tool slice: %+v", resp.Result)
	}
	if len(tools) != len(GetToolDefinitions()) {
		t.Errorf("got %d tools, want %d", len(tools), len(GetToolDefinitions()))
	}
}
