package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxyfox/proxyfox"
	"github.com/proxyfox/proxyfox/catalog"
)

type failingLister struct{}

func (failingLister) ListResources(ctx context.Context) ([]proxyfox.Resource, error) {
	return nil, errors.New("database down")
}

// roundTripFunc lets tests fail the paying client.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func makeCallToolRequest(name string, args string) *mcp.CallToolRequest {
	params := &mcp.CallToolParamsRaw{Name: name}
	if args != "" {
		params.Arguments = json.RawMessage(args)
	}
	return &mcp.CallToolRequest{Params: params}
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolServer_Register(t *testing.T) {
	cat := catalog.NewMemoryCatalog(
		proxyfox.Resource{ID: "a", Actions: []proxyfox.Action{{ID: "x"}, {ID: "y"}}},
		proxyfox.Resource{ID: "b", Actions: []proxyfox.Action{{ID: "z", Price: proxyfox.MustAmount("1", "FLOW")}}},
	)
	s := NewToolServer(cat, "http://localhost:8080", nil)

	n, err := s.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NotNil(t, s.Server())
}

func TestToolServer_RegisterErrors(t *testing.T) {
	_, err := NewToolServer(failingLister{}, "http://localhost:8080", nil).Register(context.Background())
	assert.ErrorContains(t, err, "database down")

	cat := catalog.NewMemoryCatalog(proxyfox.Resource{ID: "a", Actions: []proxyfox.Action{{ID: "x"}}})
	_, err = NewToolServer(cat, "::bad", nil).Register(context.Background())
	assert.Error(t, err)
}

func TestToolServer_HandlerPostsArguments(t *testing.T) {
	var gotPath, gotBody, gotType string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath, gotBody, gotType = r.URL.Path, string(body), r.Header.Get("Content-Type")
		w.Write([]byte(`{"temp":21}`))
	}))
	defer gateway.Close()

	s := NewToolServer(catalog.NewMemoryCatalog(), gateway.URL, gateway.Client())
	target, err := ProxyURL(gateway.URL, "srv", "weather")
	require.NoError(t, err)

	result, err := s.Handler(target)(context.Background(), makeCallToolRequest("srv__weather", `{"city":"Paris"}`))
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Equal(t, `{"temp":21}`, text(t, result))
	assert.Equal(t, "/proxy/srv/weather", gotPath)
	assert.Equal(t, `{"city":"Paris"}`, gotBody)
	assert.Equal(t, "application/json", gotType)
}

func TestToolServer_HandlerEmptyArguments(t *testing.T) {
	var gotBody string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer gateway.Close()

	s := NewToolServer(catalog.NewMemoryCatalog(), gateway.URL, nil)
	_, err := s.Handler(gateway.URL+"/proxy/a/b")(context.Background(), makeCallToolRequest("a__b", ""))
	require.NoError(t, err)
	assert.Equal(t, "{}", gotBody)
}

func TestToolServer_HandlerNon2xx(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Tool not found"}`))
	}))
	defer gateway.Close()

	s := NewToolServer(catalog.NewMemoryCatalog(), gateway.URL, nil)
	result, err := s.Handler(gateway.URL+"/proxy/a/b")(context.Background(), makeCallToolRequest("a__b", "{}"))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "404")
	assert.Contains(t, text(t, result), "Tool not found")
}

func TestToolServer_HandlerPaymentError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, proxyfox.NewPaymentError(proxyfox.ErrCodeBroadcastError, "failed to broadcast transfer", map[string]interface{}{
			"error": "insufficient funds",
		})
	})}

	s := NewToolServer(catalog.NewMemoryCatalog(), "http://gateway", client)
	result, err := s.Handler("http://gateway/proxy/a/b")(context.Background(), makeCallToolRequest("a__b", "{}"))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	structured, ok := result.StructuredContent.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, proxyfox.ErrCodeBroadcastError, structured["error"])
	assert.Contains(t, text(t, result), "insufficient funds")
}

func TestDescribe(t *testing.T) {
	r := proxyfox.Resource{ID: "srv", Name: "Weather"}
	assert.Equal(t, "Forecast (free)", describe(r, proxyfox.Action{ID: "f", Description: "Forecast"}))
	assert.Equal(t, "f on Weather (costs 2 FLOW)", describe(r, proxyfox.Action{ID: "f", Price: proxyfox.MustAmount("2", "FLOW")}))
}
