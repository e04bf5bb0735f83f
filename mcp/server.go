package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
)

// maxResponseBytes caps how much of a gateway response is returned to the agent.
const maxResponseBytes = 1 << 20

var defaultInputSchema = map[string]interface{}{"type": "object"}

// ToolServer registers catalog actions on an MCP server.
type ToolServer struct {
	server   *mcpsdk.Server
	catalog  proxyfox.ResourceLister
	proxyURL string
	client   *http.Client
	logger   *zap.Logger
}

// Option configures a ToolServer
type Option func(*ToolServer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *ToolServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServer registers tools on an existing MCP server instead of a new one.
func WithServer(server *mcpsdk.Server) Option {
	return func(s *ToolServer) {
		if server != nil {
			s.server = server
		}
	}
}

// NewToolServer creates a tool server. client should be a paying client,
// see http.WrapClient.
func NewToolServer(catalog proxyfox.ResourceLister, proxyURL string, client *http.Client, opts ...Option) *ToolServer {
	s := &ToolServer{
		catalog:  catalog,
		proxyURL: proxyURL,
		client:   client,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.server == nil {
		s.server = mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "proxyfox",
			Version: "1.0.0",
		}, nil)
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	return s
}

// Server returns the underlying MCP server.
func (s *ToolServer) Server() *mcpsdk.Server {
	return s.server
}

// Register adds one tool per catalog action and returns how many were added.
func (s *ToolServer) Register(ctx context.Context) (int, error) {
	resources, err := s.catalog.ListResources(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list resources: %w", err)
	}

	count := 0
	for _, resource := range resources {
		for _, action := range resource.Actions {
			target, err := ProxyURL(s.proxyURL, resource.ID, action.ID)
			if err != nil {
				return count, err
			}
			name := ToolName(resource.ID, action.ID)
			s.server.AddTool(&mcpsdk.Tool{
				Name:        name,
				Description: describe(resource, action),
				InputSchema: defaultInputSchema,
			}, s.Handler(target))
			s.logger.Debug("registered tool", zap.String("tool", name), zap.String("url", target))
			count++
		}
	}
	return count, nil
}

// Run serves the MCP server on transport until ctx is done or the client
// disconnects.
func (s *ToolServer) Run(ctx context.Context, transport mcpsdk.Transport) error {
	return s.server.Run(ctx, transport)
}

// Handler returns a tool handler that POSTs the call arguments to target.
func (s *ToolServer) Handler(target string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		body := []byte("{}")
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			body = req.Params.Arguments
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(httpReq)
		if err != nil {
			s.logger.Warn("tool call failed", zap.String("url", target), zap.Error(err))
			return errorResult(err), nil
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return errorResult(fmt.Errorf("failed to read response: %w", err)), nil
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{
					&mcpsdk.TextContent{Text: fmt.Sprintf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), data)},
				},
			}, nil
		}

		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		}, nil
	}
}

// errorResult reports err to the agent. Payment errors keep their code and
// details in the structured content.
func errorResult(err error) *mcpsdk.CallToolResult {
	result := &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}

	var pe *proxyfox.PaymentError
	if errors.As(err, &pe) {
		structured := map[string]interface{}{
			"error":   pe.Code,
			"message": pe.Message,
		}
		if len(pe.Details) > 0 {
			structured["details"] = pe.Details
		}
		if data, err := json.Marshal(structured); err == nil {
			result.Content = []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}}
		}
		result.StructuredContent = structured
	}
	return result
}

func describe(resource proxyfox.Resource, action proxyfox.Action) string {
	desc := action.Description
	if desc == "" {
		desc = fmt.Sprintf("%s on %s", action.ID, resource.Name)
		if resource.Name == "" {
			desc = fmt.Sprintf("%s on %s", action.ID, resource.ID)
		}
	}
	if action.Price.IsZero() {
		return desc + " (free)"
	}
	return fmt.Sprintf("%s (costs %s)", desc, action.Price)
}
