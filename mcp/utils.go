package mcp

import (
	"fmt"
	"net/url"
	"strings"
)

// ToolSeparator joins resource and action ids in tool names.
const ToolSeparator = "__"

// ToolName builds the MCP tool name for an action. Characters MCP does not
// allow in tool names are replaced with '_'.
func ToolName(resourceID, actionID string) string {
	return sanitize(resourceID) + ToolSeparator + sanitize(actionID)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

// ProxyURL builds "{base}/proxy/{resource}/{action}".
func ProxyURL(base, resourceID, actionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid proxy url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid proxy url %q: missing scheme or host", base)
	}
	return u.JoinPath("proxy", resourceID, actionID).String(), nil
}
