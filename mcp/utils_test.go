package mcp

import "testing"

func TestToolName(t *testing.T) {
	tests := []struct {
		resource, action, want string
	}{
		{"srv-1", "weather", "srv-1__weather"},
		{"my server", "get/forecast", "my_server__get_forecast"},
		{"v1.2", "search", "v1.2__search"},
	}
	for _, tt := range tests {
		if got := ToolName(tt.resource, tt.action); got != tt.want {
			t.Errorf("ToolName(%q, %q) = %q, want %q", tt.resource, tt.action, got, tt.want)
		}
	}
}

func TestProxyURL(t *testing.T) {
	got, err := ProxyURL("http://localhost:8080/base/", "srv", "search")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := "http://localhost:8080/base/proxy/srv/search"; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if _, err := ProxyURL("localhost", "srv", "search"); err == nil {
		t.Error("Expected error for url without scheme")
	}
}
