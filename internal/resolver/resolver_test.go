package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sift/internal/config"
	"sift/internal/logger"
)

func testResolver(t *testing.T, cache Cache) *Resolver {
	t.Helper()
	cfg := config.ResolverConfig{
		MaxHops:      10,
		HopTimeout:   5 * time.Second,
		ChainBudget:  20 * time.Second,
		PerHostRPS:   1000,
		PerHostBurst: 1000,
	}
	return New(cfg, cache, nil, logger.NopLogger())
}

func TestResolveHTTPRedirectChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			http.Redirect(w, r, "/b", http.StatusFound)
		case "/b":
			http.Redirect(w, r, "/final", http.StatusMovedPermanently)
		case "/final":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/a")
	assert.Equal(t, srv.URL+"/final", got)
}

func TestResolveStopsAtHopLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n+1), http.StatusFound)
	}))
	defer srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/hop/0")
	assert.Equal(t, srv.URL+"/hop/10", got)
}

func TestResolveMetaRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/interstitial":
			fmt.Fprint(w, `<html><head><meta http-equiv="refresh" content="0;url=/landing"></head></html>`)
		case "/landing":
			fmt.Fprint(w, "<html>done</html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/interstitial")
	assert.Equal(t, srv.URL+"/landing", got)
}

func TestResolveJavaScriptRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/click":
			// Port 9 is discard; the follow-up fetch fails fast and the
			// resolver keeps the last URL reached.
			fmt.Fprint(w, `<html><script>window.location.href = "http://127.0.0.1:9/donate";</script></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/click")
	assert.Equal(t, "http://127.0.0.1:9/donate", got)
}

func TestResolveVendorPattern(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/track":
			fmt.Fprint(w, `<html><body><a data-redirect-url="/target">continue</a></body></html>`)
		case "/target":
			fmt.Fprint(w, "<html>landed</html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/track")
	assert.Equal(t, srv.URL+"/target", got)
}

func TestResolveHeadRefusedFallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/guarded" {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			http.Redirect(w, r, "/open", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/guarded")
	assert.Equal(t, srv.URL+"/open", got)
}

func TestResolveRedirectLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			http.Redirect(w, r, "/pong", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/ping", http.StatusFound)
	}))
	defer srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/ping")
	assert.Equal(t, srv.URL+"/pong", got)
}

func TestResolveUnreachableHostReturnsInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/gone")
	assert.Equal(t, srv.URL+"/gone", got)
}

func TestResolveUnparseableInputUnchanged(t *testing.T) {
	r := testResolver(t, nil)

	assert.Equal(t, "not a url", r.Resolve(context.Background(), "not a url"))
	assert.Equal(t, "mailto:someone@example.com", r.Resolve(context.Background(), "mailto:someone@example.com"))
	assert.Equal(t, "", r.Resolve(context.Background(), "  "))
}

func TestResolveTerminalPageNoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>plain landing page</body></html>")
	}))
	defer srv.Close()

	r := testResolver(t, nil)
	got := r.Resolve(context.Background(), srv.URL+"/page")
	assert.Equal(t, srv.URL+"/page", got)
}

func TestScanBodyOrder(t *testing.T) {
	// Vendor patterns outrank meta refresh, which outranks generic JS.
	body := []byte(`
		<meta http-equiv="refresh" content="0;url=https://meta.example/">
		<div data-redirect-url="https://vendor.example/"></div>
		<script>location.href = "https://js.example/";</script>
	`)

	target, kind := scanBody(body)
	assert.Equal(t, "https://vendor.example/", target)
	assert.Equal(t, hopVendor, kind)

	target, kind = scanBody([]byte(`<meta http-equiv="refresh" content="5; url=https://meta.example/x">`))
	assert.Equal(t, "https://meta.example/x", target)
	assert.Equal(t, hopMeta, kind)

	target, kind = scanBody([]byte(`<script>location.replace("https://js.example/y")</script>`))
	assert.Equal(t, "https://js.example/y", target)
	assert.Equal(t, hopJS, kind)

	target, _ = scanBody([]byte(`<html><body>nothing here</body></html>`))
	assert.Equal(t, "", target)
}
