package server

import "github.com/ironsheep/fiber-gauge-mcp/internal/config"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the micrograph. Defaults to the image from the last image_load.",
	}
}

func cutoffProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Number of rows kept from the top of the image; rows below hold the instrument's info bar. Defaults to the configured cutoff (872).",
		"minimum":     config.MinCutoff,
		"maximum":     config.MaxCutoff,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load a micrograph (PNG, JPEG, BMP or GIF) and return its dimensions and format. Sets it as the active image for the fiber_* tools.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "fiber_quadrants",
			Description: "Show how the cropped micrograph is split into the four quadrants that are measured independently. Returns each quadrant's offset and size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"cutoff": cutoffProperty(),
				},
			},
		},
		{
			Name:        "fiber_edge_detect",
			Description: "Run Canny edge detection on the cropped micrograph or one quadrant and return the binary edge map as base64 PNG, plus the bounding boxes of the outermost contours. Use it to tune thresholds before fiber_analyze.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"cutoff": cutoffProperty(),
					"quadrant": map[string]interface{}{
						"type":        "string",
						"description": "Restrict to one quadrant. Omit for the whole cropped image.",
						"enum":        []string{"top-left", "top-right", "bottom-left", "bottom-right"},
					},
					"low_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Hysteresis low threshold on the gradient magnitude. Default 50",
						"default":     50,
					},
					"high_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Threshold above which a pixel seeds an edge. Default 150",
						"default":     150,
					},
				},
			},
		},
		{
			Name:        "fiber_analyze",
			Description: "Measure fiber diameters. Crops the micrograph, detects fiber outlines per quadrant, takes the shorter side of each bounding box as the diameter and converts it to nanometers. Returns the mean diameter, every measurement, per-quadrant statistics, a text summary and an annotated preview.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"cutoff": cutoffProperty(),
					"pixels_per_micrometer": map[string]interface{}{
						"type":             "number",
						"description":      "Calibration: image pixels per micrometer. Defaults to the configured value (47).",
						"exclusiveMinimum": 0,
					},
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the annotated preview as base64 PNG. Default true",
						"default":     true,
					},
					"preview_size": map[string]interface{}{
						"type":        "integer",
						"description": "Longest side of the preview in pixels. Default 400",
						"default":     400,
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
