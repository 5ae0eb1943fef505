package server

import (
	"context"
	"fmt"
	"image"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/fiber-gauge-mcp/internal/config"
	"github.com/ironsheep/fiber-gauge-mcp/internal/detection"
	"github.com/ironsheep/fiber-gauge-mcp/internal/fiber"
	"github.com/ironsheep/fiber-gauge-mcp/internal/imaging"
	"github.com/ironsheep/fiber-gauge-mcp/internal/logging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "fiber_analyze").
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

	log := s.log.WithField(logging.ToolKey, params.Name)
	start := time.Now()

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		log.WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	log.WithField("elapsed", time.Since(start).String()).Debug("tool completed")

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
	case "image_load":
		return s.handleImageLoad(args)
	case "fiber_quadrants":
		return s.handleFiberQuadrants(args)
	case "fiber_edge_detect":
		return s.handleFiberEdgeDetect(args)
	case "fiber_analyze":
		return s.handleFiberAnalyze(ctx, args)
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

// decodeArgs unmarshals tool arguments; a missing arguments object is
// treated as empty.
func decodeArgs(args jsoniter.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", imaging.ErrInvalidParameter, err)
	}
	return nil
}

// resolvePath returns path, or the session's active image when path is empty.
func (s *Server) resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if active := s.session.active(); active != "" {
		return active, nil
	}
	return "", fmt.Errorf("%w: no path given and no image loaded; call image_load first",
		imaging.ErrInvalidParameter)
}

func (s *Server) loadImage(path string) (string, image.Image, error) {
	path, err := s.resolvePath(path)
	if err != nil {
		return "", nil, err
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return "", nil, err
	}
	return path, img, nil
}

// cutoffOrDefault returns the configured cutoff when none is given, and
// otherwise holds the argument to the config file's bounds.
func (s *Server) cutoffOrDefault(cutoff *int) (int, error) {
	if cutoff == nil {
		return s.cfg.Analysis.Cutoff, nil
	}
	if err := config.ValidateCutoff(*cutoff); err != nil {
		return 0, fmt.Errorf("%w: %v", imaging.ErrInvalidParameter, err)
	}
	return *cutoff, nil
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

// handleImageLoad re-reads the file from disk and makes it the active image.
func (s *Server) handleImageLoad(args jsoniter.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("%w: path is required", imaging.ErrInvalidParameter)
	}

	s.cache.Evict(a.Path)
	info, err := s.cache.Info(a.Path)
	if err != nil {
		return nil, err
	}
	s.session.set(a.Path)
	return info, nil
}

// === Fiber Handlers ===

type fiberQuadrantsArgs struct {
	Path   string `json:"path"`
	Cutoff *int   `json:"cutoff"`
}

type fiberQuadrantsResult struct {
	Path    string           `json:"path"`
	Cutoff  int              `json:"cutoff"`
	Width   int              `json:"width"`
	Height  int              `json:"height"`
	Regions []imaging.Region `json:"regions"`
}

func (s *Server) handleFiberQuadrants(args jsoniter.RawMessage) (interface{}, error) {
	var a fiberQuadrantsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	path, img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	cutoff, err := s.cutoffOrDefault(a.Cutoff)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if cutoff <= 0 || cutoff > b.Dy() {
		return nil, fmt.Errorf("%w: cutoff %d outside image height 1..%d",
			imaging.ErrInvalidParameter, cutoff, b.Dy())
	}

	regions := imaging.Partition(b.Dx(), cutoff)
	return &fiberQuadrantsResult{
		Path:    path,
		Cutoff:  cutoff,
		Width:   b.Dx(),
		Height:  cutoff,
		Regions: regions[:],
	}, nil
}

type fiberEdgeDetectArgs struct {
	Path          string   `json:"path"`
	Cutoff        *int     `json:"cutoff"`
	Quadrant      string   `json:"quadrant"`
	LowThreshold  *float64 `json:"low_threshold"`
	HighThreshold *float64 `json:"high_threshold"`
}

type fiberEdgeDetectResult struct {
	Path    string              `json:"path"`
	Cutoff  int                 `json:"cutoff"`
	Region  *imaging.Region     `json:"region,omitempty"`
	Params  imaging.CannyParams `json:"params"`
	Backend string              `json:"backend"`
	Boxes   []detection.Box     `json:"boxes"`
	*imaging.EdgeDetectResult
}

func (s *Server) handleFiberEdgeDetect(args jsoniter.RawMessage) (interface{}, error) {
	var a fiberEdgeDetectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	path, img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	cutoff, err := s.cutoffOrDefault(a.Cutoff)
	if err != nil {
		return nil, err
	}
	cropped, err := imaging.CropRows(img, cutoff)
	if err != nil {
		return nil, err
	}

	params := imaging.CannyParams{
		LowThreshold:  s.cfg.Edges.LowThreshold,
		HighThreshold: s.cfg.Edges.HighThreshold,
		L2Gradient:    s.cfg.Edges.L2Gradient,
		BlurRadius:    s.cfg.Edges.BlurRadius,
	}
	if a.LowThreshold != nil {
		params.LowThreshold = *a.LowThreshold
	}
	if a.HighThreshold != nil {
		params.HighThreshold = *a.HighThreshold
	}

	out := &fiberEdgeDetectResult{Path: path, Cutoff: cutoff, Params: params}

	var target image.Image = cropped
	if a.Quadrant != "" {
		b := cropped.Bounds()
		r, err := imaging.RegionByName(b.Dx(), b.Dy(), a.Quadrant)
		if err != nil {
			return nil, err
		}
		out.Region = &r
		target = imaging.View(cropped, r)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	edges := imaging.Canny(target, params)
	if out.EdgeDetectResult, err = imaging.EncodeEdges(edges); err != nil {
		return nil, err
	}

	d := s.analyzer.Detector()
	out.Backend = d.Name()
	if out.Boxes, err = detection.DetectFromEdges(d, target, edges, params); err != nil {
		return nil, err
	}
	return out, nil
}

type fiberAnalyzeArgs struct {
	Path                string   `json:"path"`
	Cutoff              *int     `json:"cutoff"`
	PixelsPerMicrometer *float64 `json:"pixels_per_micrometer"`
	IncludeImage        *bool    `json:"include_image"`
	PreviewSize         int      `json:"preview_size"`
}

type fiberAnalyzeResult struct {
	Path    string `json:"path"`
	Summary string `json:"summary"`
	*fiber.Result
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

func (s *Server) handleFiberAnalyze(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a fiberAnalyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	path, img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	ppm := s.cfg.Analysis.PixelsPerMicrometer
	if a.PixelsPerMicrometer != nil {
		ppm = *a.PixelsPerMicrometer
	}

	cutoff, err := s.cutoffOrDefault(a.Cutoff)
	if err != nil {
		return nil, err
	}
	result, err := s.analyzer.Analyze(ctx, img, cutoff, ppm)
	if err != nil {
		return nil, err
	}

	out := &fiberAnalyzeResult{Path: path, Summary: result.Summary(), Result: result}
	if a.IncludeImage == nil || *a.IncludeImage {
		size := a.PreviewSize
		if size <= 0 {
			size = s.cfg.Annotation.PreviewSize
		}
		encoded, err := result.PreviewBase64(size)
		if err != nil {
			return nil, fmt.Errorf("failed to encode preview: %w", err)
		}
		out.ImageBase64 = encoded
		out.MimeType = "image/png"
	}
	return out, nil
}
