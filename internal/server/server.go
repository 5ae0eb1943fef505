package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/fiber-gauge-mcp/internal/config"
	"github.com/ironsheep/fiber-gauge-mcp/internal/fiber"
	"github.com/ironsheep/fiber-gauge-mcp/internal/imaging"
	"github.com/ironsheep/fiber-gauge-mcp/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Name is reported to clients in serverInfo.
const Name = "fiber-gauge-mcp"

// Server handles MCP protocol communication
type Server struct {
	cache    *imaging.ImageCache
	cfg      *config.Config
	analyzer *fiber.Analyzer
	log      logrus.FieldLogger
	version  string

	in  io.Reader
	out io.Writer

	session session
}

// session is the per-connection state: the image later tool calls default to.
type session struct {
	mu         sync.Mutex
	activePath string
}

func (s *session) set(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePath = path
}

func (s *session) active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePath
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      interface{}         `json:"id"`
	Method  string              `json:"method"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Option configures a Server.
type Option func(*Server) error

// WithConfig sets the configuration the tools take their defaults from. The
// analyzer is built from it unless WithAnalyzer is also given.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger. Without it the server logs nothing.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

// WithAnalyzer overrides the analyzer built from the configuration.
func WithAnalyzer(a *fiber.Analyzer) Option {
	return func(s *Server) error {
		s.analyzer = a
		return nil
	}
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) error {
		s.in = in
		s.out = out
		return nil
	}
}

// WithVersion sets the version reported in serverInfo.
func WithVersion(v string) Option {
	return func(s *Server) error {
		s.version = v
		return nil
	}
}

// New creates a new MCP server instance
func New(opts ...Option) (*Server, error) {
	s := &Server{
		cache:   imaging.NewImageCache(),
		cfg:     config.DefaultConfig(),
		log:     logging.Discard(),
		version: "0.1.0",
		in:      os.Stdin,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.analyzer == nil {
		fopts, err := fiber.OptionsFromConfig(s.cfg, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to configure analyzer: %w", err)
		}
		s.analyzer = fiber.NewAnalyzer(fopts)
	}
	return s, nil
}

// Run reads requests line by line until the input closes or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(s.out)

	s.log.WithField("backend", s.analyzer.Backend()).Info("MCP server ready")

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    Name,
				"version": s.version,
			},
		},
	}
}
