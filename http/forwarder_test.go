package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/proxyfox/proxyfox"
)

func TestUpstreamURL(t *testing.T) {
	tests := []struct {
		base, path, query string
		want              string
		wantErr           bool
	}{
		{base: "http://up.local", path: "weather", want: "http://up.local/weather"},
		{base: "http://up.local/api/", path: "weather", want: "http://up.local/api/weather"},
		{base: "http://up.local/api", path: "weather", query: "a=1&b=2", want: "http://up.local/api/weather?a=1&b=2"},
		{base: "http://up.local/api?key=k", path: "weather", query: "a=1", want: "http://up.local/api/weather?key=k&a=1"},
		{base: "not a url", path: "weather", wantErr: true},
		{base: "/relative", path: "weather", wantErr: true},
	}

	for _, tt := range tests {
		got, err := UpstreamURL(tt.base, tt.path, tt.query)
		if tt.wantErr {
			if err == nil {
				t.Errorf("UpstreamURL(%q) expected error, got %q", tt.base, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("UpstreamURL(%q) unexpected error: %v", tt.base, err)
			continue
		}
		if got != tt.want {
			t.Errorf("UpstreamURL(%q, %q, %q) = %q, want %q", tt.base, tt.path, tt.query, got, tt.want)
		}
	}
}

func TestForwarder_RelaysVerbatim(t *testing.T) {
	var gotHeader http.Header
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("\x00binary\xffbody"))
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodPut, "/proxy/r/a?x=y", strings.NewReader("payload"))
	req.Header.Set("Authorization", "Bearer t")
	req.Header.Set("Connection", "keep-alive")
	rec := httptest.NewRecorder()

	err := NewForwarder().Forward(context.Background(), rec, req, upstream.URL, "a")
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "\x00binary\xffbody" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if diff := cmp.Diff([]string{"a=1", "b=2"}, rec.Header().Values("Set-Cookie")); diff != "" {
		t.Errorf("Set-Cookie mismatch (-want +got):\n%s", diff)
	}
	if gotHeader.Get("Authorization") != "Bearer t" {
		t.Errorf("Authorization not forwarded: %v", gotHeader)
	}
	if gotBody != "payload" {
		t.Errorf("upstream body = %q, want payload", gotBody)
	}
}

func TestForwarder_GetDropsBody(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, "/proxy/r/a", strings.NewReader("ignored"))
	if err := NewForwarder().Forward(context.Background(), httptest.NewRecorder(), req, upstream.URL, "a"); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if gotBody != "" {
		t.Errorf("GET body forwarded: %q", gotBody)
	}
}

func TestForwarder_DoesNotFollowRedirects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/proxy/r/a", nil)
	if err := NewForwarder().Forward(context.Background(), rec, req, upstream.URL, "a"); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
}

func TestForwarder_Unreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	base := upstream.URL
	upstream.Close()

	rec := httptest.NewRecorder()
	err := NewForwarder().Forward(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/", nil), base, "a")
	if !errors.Is(err, proxyfox.ErrUpstreamUnreachable) {
		t.Fatalf("expected ErrUpstreamUnreachable, got %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("nothing should be written on failure, got %q", rec.Body.String())
	}
}
