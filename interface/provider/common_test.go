package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/earthpulse/imagery-ingester/service"
)

// redirectChain serves n redirect hops before a 200 with the given body
func redirectChain(n int, body string, requests *[]string) *httptest.Server {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests = append(*requests, r.Header.Get("Authorization"))
		var hop int
		fmt.Sscanf(r.URL.Path, "/hop%d", &hop)
		if hop < n {
			http.Redirect(w, r, fmt.Sprintf("%s/hop%d", server.URL, hop+1), http.StatusFound)
			return
		}
		w.Write([]byte(body))
	}))
	return server
}

func TestGetWithAuthFollowsRedirects(t *testing.T) {
	var requests []string
	server := redirectChain(2, "band bytes", &requests)
	defer server.Close()

	body, err := getWithAuth(context.Background(), server.URL+"/hop0", "token")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "band bytes" {
		t.Errorf("expected final response content, got %q", body)
	}
	// two hops consumed: initial request + 2 redirects
	if len(requests) != 3 {
		t.Errorf("expected 3 requests, got %d", len(requests))
	}
	for i, auth := range requests {
		if auth != "Bearer token" {
			t.Errorf("request %d: authorization not re-applied (%q)", i, auth)
		}
	}
}

func TestGetWithAuthRedirectLoop(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unbroken redirect chain
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusMovedPermanently)
	}))
	defer server.Close()

	_, err := getWithAuth(context.Background(), server.URL+"/loop", "token")
	if err == nil {
		t.Fatal("expected a redirect loop error")
	}
	var loopErr ErrRedirectLoop
	if !errors.As(err, &loopErr) {
		t.Errorf("expected ErrRedirectLoop, got %v", err)
	}
}

func TestDownloadFileWithAuth(t *testing.T) {
	var requests []string
	server := redirectChain(2, "jp2 content", &requests)
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "T31TCJ_20230615T104621_B02_10m.jp2")
	if err := downloadFileWithAuth(context.Background(), server.URL+"/hop0", dst, "token", "Copernicus:B02"); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "jp2 content" {
		t.Errorf("expected final response content, got %q", content)
	}
}

func TestDownloadFileWithAuthRedirectLoop(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusTemporaryRedirect)
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "band.jp2")
	err := downloadFileWithAuth(context.Background(), server.URL+"/loop", dst, "token", "Copernicus:B02")
	if err == nil {
		t.Fatal("expected a redirect loop error")
	}
	var loopErr ErrRedirectLoop
	if !errors.As(err, &loopErr) {
		t.Errorf("expected ErrRedirectLoop, got %v", err)
	}
}

func TestGetWithAuthNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := getWithAuth(context.Background(), server.URL+"/Products(gone)", "token")
	var notFound ErrProductNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
	if service.Temporary(err) {
		t.Error("a missing product is not a transient failure")
	}
}
