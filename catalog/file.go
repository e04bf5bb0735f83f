package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
)

// DefaultNetwork is assigned to file entries that do not name a network.
const DefaultNetwork proxyfox.Network = "flow-evm-testnet"

var (
	// ErrInvalidCatalog is returned when a catalog document fails schema validation.
	ErrInvalidCatalog = errors.New("invalid catalog document")

	// ErrNetworkMismatch is returned when a resource names a network other
	// than the one the catalog serves.
	ErrNetworkMismatch = errors.New("resource network mismatch")
)

// catalogSchema describes the server list document:
// [{serverId, serverName, serverUri, recipient, network?, tools: [{toolName, description?, price}]}]
const catalogSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["serverId", "serverUri", "recipient", "tools"],
    "properties": {
      "serverId":   {"type": "string", "minLength": 1},
      "serverName": {"type": "string"},
      "serverUri":  {"type": "string", "minLength": 1},
      "recipient":  {"type": "string", "minLength": 1},
      "network":    {"type": "string"},
      "tools": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["toolName", "price"],
          "properties": {
            "toolName":    {"type": "string", "minLength": 1},
            "description": {"type": "string"},
            "price":       {"type": ["string", "number"]}
          }
        }
      }
    }
  }
}`

type fileServer struct {
	ServerID   string     `json:"serverId"`
	ServerName string     `json:"serverName"`
	ServerURI  string     `json:"serverUri"`
	Recipient  string     `json:"recipient"`
	Network    string     `json:"network"`
	Tools      []fileTool `json:"tools"`
}

type fileTool struct {
	ToolName    string          `json:"toolName"`
	Description string          `json:"description"`
	Price       json.RawMessage `json:"price"`
}

// FileCatalog serves resources from a JSON document on disk. The document
// is read at construction and again on Reload.
type FileCatalog struct {
	*MemoryCatalog
	path    string
	network proxyfox.Network
	logger  *zap.Logger
}

// FileOption configures a FileCatalog
type FileOption func(*FileCatalog)

// WithFileLogger sets the logger used on reload.
func WithFileLogger(logger *zap.Logger) FileOption {
	return func(c *FileCatalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNetwork assigns network to entries that name none and rejects any
// document with an entry naming a different one.
func WithNetwork(network proxyfox.Network) FileOption {
	return func(c *FileCatalog) {
		c.network = network
	}
}

// NewFileCatalog loads path and returns a catalog over its contents.
func NewFileCatalog(path string, opts ...FileOption) (*FileCatalog, error) {
	c := &FileCatalog{
		MemoryCatalog: NewMemoryCatalog(),
		path:          path,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Reload(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the file. On error the previous contents are kept.
func (c *FileCatalog) Reload(ctx context.Context) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", c.path, err)
	}
	network := c.network
	if network == "" {
		network = DefaultNetwork
	}
	resources, err := parseDocument(data, network)
	if err != nil {
		return err
	}
	if c.network != "" {
		if err := CheckNetwork(resources, c.network); err != nil {
			return err
		}
	}
	c.Replace(resources)
	c.logger.Info("catalog loaded", zap.String("path", c.path), zap.Int("resources", len(resources)))
	return nil
}

// ParseDocument validates and converts a server list document. Entries
// without a network get DefaultNetwork.
func ParseDocument(data []byte) ([]proxyfox.Resource, error) {
	return parseDocument(data, DefaultNetwork)
}

// CheckNetwork fails with ErrNetworkMismatch if any resource is priced on a
// network other than network.
func CheckNetwork(resources []proxyfox.Resource, network proxyfox.Network) error {
	for _, r := range resources {
		if r.Network != network {
			return fmt.Errorf("%w: %s is on %s, gateway serves %s", ErrNetworkMismatch, r.ID, r.Network, network)
		}
	}
	return nil
}

func parseDocument(data []byte, defaultNetwork proxyfox.Network) ([]proxyfox.Resource, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(catalogSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(msgs, "; "))
	}

	var servers []fileServer
	if err := json.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	resources := make([]proxyfox.Resource, 0, len(servers))
	for _, s := range servers {
		network := proxyfox.Network(s.Network)
		if network == "" {
			network = defaultNetwork
		}
		r := proxyfox.Resource{
			ID:           s.ServerID,
			Name:         s.ServerName,
			Recipient:    s.Recipient,
			UpstreamBase: s.ServerURI,
			Network:      network,
		}
		for _, tool := range s.Tools {
			price, err := parseRawPrice(tool.Price)
			if err != nil {
				return nil, fmt.Errorf("%w: server %s tool %s: %v", ErrInvalidCatalog, s.ServerID, tool.ToolName, err)
			}
			r.Actions = append(r.Actions, proxyfox.Action{
				ID:          tool.ToolName,
				Description: tool.Description,
				Price:       price,
			})
		}
		resources = append(resources, r)
	}
	return resources, nil
}

func parseRawPrice(raw json.RawMessage) (proxyfox.Amount, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParsePrice(s)
	}
	return ParsePrice(string(raw))
}
