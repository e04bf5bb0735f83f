package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = string(body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := call(context.Background(), srv.Client(), srv.URL, strings.NewReader(` {"q":"x"} `), &out)
	require.NoError(t, err)
	assert.Equal(t, `{"q":"x"}`, got)
	assert.Equal(t, "{\n  \"ok\": true\n}\n", out.String())
}

func TestCall_EmptyStdinSendsEmptyObject(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = string(body)
	}))
	defer srv.Close()

	require.NoError(t, call(context.Background(), srv.Client(), srv.URL, strings.NewReader(""), io.Discard))
	assert.Equal(t, "{}", got)
}

func TestCall_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"message":"Payment Required"}`))
	}))
	defer srv.Close()

	err := call(context.Background(), srv.Client(), srv.URL, strings.NewReader("not json"), io.Discard)
	assert.ErrorContains(t, err, "not valid JSON")

	var out bytes.Buffer
	err = call(context.Background(), srv.Client(), srv.URL, strings.NewReader("{}"), &out)
	assert.ErrorContains(t, err, "402")
	assert.Contains(t, out.String(), "Payment Required")
}
