package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxyfox/proxyfox"
)

const sampleDocument = `[
  {
    "serverId": "srv-weather",
    "serverName": "Weather",
    "serverUri": "http://localhost:9000/api",
    "recipient": "0xAbCdEf0000000000000000000000000000000001",
    "tools": [
      {"toolName": "weather", "description": "current weather", "price": "5"},
      {"toolName": "ping", "price": "$0"},
      {"toolName": "forecast", "price": "0.25 FLOW"},
      {"toolName": "numeric", "price": 1.5}
    ]
  }
]`

func writeDocument(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestFileCatalog_Load(t *testing.T) {
	cat, err := NewFileCatalog(writeDocument(t, sampleDocument))
	require.NoError(t, err)

	r, err := cat.ResolveResource(context.Background(), "srv-weather")
	require.NoError(t, err)
	assert.Equal(t, "Weather", r.Name)
	assert.Equal(t, "http://localhost:9000/api", r.UpstreamBase)
	assert.Equal(t, DefaultNetwork, r.Network)
	require.Len(t, r.Actions, 4)

	prices := map[string]string{}
	for _, a := range r.Actions {
		prices[a.ID] = a.Price.String()
	}
	assert.Equal(t, map[string]string{
		"weather":  "5 FLOW",
		"ping":     "0 FLOW",
		"forecast": "0.25 FLOW",
		"numeric":  "1.5 FLOW",
	}, prices)

	_, err = cat.ResolveResource(context.Background(), "nope")
	assert.ErrorIs(t, err, proxyfox.ErrResourceNotFound)
}

func TestFileCatalog_Reload(t *testing.T) {
	path := writeDocument(t, sampleDocument)
	cat, err := NewFileCatalog(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[{"serverId":"other","serverUri":"http://x","recipient":"0x1","tools":[]}]`), 0o600))
	require.NoError(t, cat.Reload(context.Background()))

	_, err = cat.ResolveResource(context.Background(), "srv-weather")
	assert.ErrorIs(t, err, proxyfox.ErrResourceNotFound)
	_, err = cat.ResolveResource(context.Background(), "other")
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"broken":`), 0o600))
	assert.Error(t, cat.Reload(context.Background()))
	_, err = cat.ResolveResource(context.Background(), "other")
	assert.NoError(t, err, "previous contents kept after a failed reload")
}

func TestFileCatalog_WithNetwork(t *testing.T) {
	path := writeDocument(t, sampleDocument)
	cat, err := NewFileCatalog(path, WithNetwork("flow-evm-mainnet"))
	require.NoError(t, err)

	r, err := cat.ResolveResource(context.Background(), "srv-weather")
	require.NoError(t, err)
	assert.Equal(t, proxyfox.Network("flow-evm-mainnet"), r.Network)

	require.NoError(t, os.WriteFile(path, []byte(`[{"serverId":"other","serverUri":"http://x","recipient":"0x1","network":"flow-evm-testnet","tools":[]}]`), 0o600))
	err = cat.Reload(context.Background())
	assert.ErrorIs(t, err, ErrNetworkMismatch)
	_, err = cat.ResolveResource(context.Background(), "srv-weather")
	assert.NoError(t, err, "previous contents kept after a rejected reload")

	_, err = NewFileCatalog(path, WithNetwork("flow-evm-mainnet"))
	assert.ErrorIs(t, err, ErrNetworkMismatch)
}

func TestParseDocument_Invalid(t *testing.T) {
	tests := map[string]string{
		"not an array":      `{"serverId":"a"}`,
		"missing recipient": `[{"serverId":"a","serverUri":"http://x","tools":[]}]`,
		"tool without name": `[{"serverId":"a","serverUri":"http://x","recipient":"0x1","tools":[{"price":"1"}]}]`,
		"bad price":         `[{"serverId":"a","serverUri":"http://x","recipient":"0x1","tools":[{"toolName":"t","price":"free"}]}]`,
		"negative price":    `[{"serverId":"a","serverUri":"http://x","recipient":"0x1","tools":[{"toolName":"t","price":"-1"}]}]`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument([]byte(doc))
			assert.True(t, errors.Is(err, ErrInvalidCatalog), "got %v", err)
		})
	}
}

func TestParsePrice(t *testing.T) {
	for in, want := range map[string]string{
		"0.01":     "0.01 FLOW",
		"$0.01":    "0.01 FLOW",
		" $2 ":     "2 FLOW",
		"0.5 FLOW": "0.5 FLOW",
		"3 USDC":   "3 USDC",
	} {
		got, err := ParsePrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}
}

func TestMemoryCatalog_List(t *testing.T) {
	cat := NewMemoryCatalog(
		proxyfox.Resource{ID: "b"},
		proxyfox.Resource{ID: "a"},
	)
	cat.Put(proxyfox.Resource{ID: "c"})

	list, err := cat.ListResources(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
