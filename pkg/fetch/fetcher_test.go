package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/img-relay/pkg/config"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// mockServer creates an httptest.Server that answers every request with the
// given status, content type and body. Returns the server and a request counter.
func mockServer(t *testing.T, status int, contentType string, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount.Add(1)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		} else {
			w.Header()["Content-Type"] = nil // suppress sniffing
		}
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestFetch_Success(t *testing.T) {
	body := []byte("\xff\xd8\xff\xe0fake-jpeg")
	server, attempts := mockServer(t, http.StatusOK, "image/png", body)

	fetcher := NewFetcher(testClient(), 0, "", testLogger())
	img, err := fetcher.Fetch(context.Background(), server.URL+"/cat.png")

	require.NoError(t, err)
	assert.Equal(t, body, img.Data)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetch_SendsImagePersona(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher := NewFetcher(testClient(), 0, "", testLogger())
	_, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "image/*,*/*", got.Get("Accept"))
	assert.Equal(t, "https://www.google.com/", got.Get("Referer"))
	assert.Equal(t, ImageUserAgent, got.Get("User-Agent"))
}

func TestFetch_UserAgentOverride(t *testing.T) {
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		w.Header().Set("Content-Type", "image/gif")
		w.Write([]byte("GIF89a"))
	}))
	defer server.Close()

	fetcher := NewFetcher(testClient(), 0, "img-relay-test/1.0", testLogger())
	_, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "img-relay-test/1.0", ua)
	assert.Equal(t, ImageUserAgent, ImagePersona.Headers["User-Agent"], "override must not mutate the shared persona")
}

func TestFetch_ContentTypeRules(t *testing.T) {
	big := bytes.Repeat([]byte{0x42}, 1001)
	small := bytes.Repeat([]byte{0x42}, 1000)

	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantType    string
		wantErr     error
	}{
		{"missing header defaults to jpeg", "", []byte("x"), "image/jpeg", nil},
		{"octet-stream large body accepted", "application/octet-stream", big, "application/octet-stream", nil},
		{"html small body rejected", "text/html", small, "", utils.ErrNotImage},
		{"uppercase image type", "IMAGE/WEBP", []byte("x"), "IMAGE/WEBP", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := mockServer(t, http.StatusOK, tt.contentType, tt.body)
			fetcher := NewFetcher(testClient(), 0, "", testLogger())
			img, err := fetcher.Fetch(context.Background(), server.URL)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.True(t, errors.Is(err, utils.ErrFetchFailure))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, img.ContentType)
		})
	}
}

func TestFetch_StatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
		category   string
	}{
		{"404 Not Found", http.StatusNotFound, utils.ErrClientHTTPError, "HTTP_404"},
		{"403 Forbidden", http.StatusForbidden, utils.ErrClientHTTPError, "HTTP_403"},
		{"429 Too Many Requests", http.StatusTooManyRequests, utils.ErrClientHTTPError, "HTTP_429"},
		{"500 Internal Server Error", http.StatusInternalServerError, utils.ErrServerHTTPError, "HTTP_5xx"},
		{"204 No Content", http.StatusNoContent, utils.ErrOtherHTTPError, "HTTP_OtherStatus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := mockServer(t, tt.statusCode, "image/jpeg", nil)

			fetcher := NewFetcher(testClient(), 0, "", testLogger())
			img, err := fetcher.Fetch(context.Background(), server.URL)

			assert.Nil(t, img)
			require.Error(t, err)
			assert.True(t, errors.Is(err, utils.ErrFetchFailure))
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
			assert.Equal(t, tt.category, utils.CategorizeError(err))
			assert.Equal(t, int32(1), attempts.Load(), "fetches are never retried")
		})
	}
}

func TestFetch_FollowsRedirects(t *testing.T) {
	final, _ := mockServer(t, http.StatusOK, "image/jpeg", []byte("final"))
	redirect := httptest.NewServer(http.RedirectHandler(final.URL+"/img.jpg", http.StatusFound))
	defer redirect.Close()

	client := NewClient(config.HTTPClientConfig{Timeout: 5 * time.Second, MaxRedirects: 3}, testLogger().Logger)
	fetcher := NewFetcher(client, 0, "", testLogger())
	img, err := fetcher.Fetch(context.Background(), redirect.URL)

	require.NoError(t, err)
	assert.Equal(t, []byte("final"), img.Data)
}

func TestFetch_RedirectCap(t *testing.T) {
	var hops atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops.Add(1)
		http.Redirect(w, r, server.URL+"/loop", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(config.HTTPClientConfig{Timeout: 5 * time.Second, MaxRedirects: 2}, testLogger().Logger)
	fetcher := NewFetcher(client, 0, "", testLogger())
	_, err := fetcher.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 2 redirects")
	assert.Equal(t, int32(2), hops.Load())
}

func TestFetch_TooLarge(t *testing.T) {
	server, _ := mockServer(t, http.StatusOK, "image/jpeg", bytes.Repeat([]byte("a"), 2048))

	fetcher := NewFetcher(testClient(), 1024, "", testLogger())
	_, err := fetcher.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrImageTooLarge))
	assert.Equal(t, "Fetch_TooLarge", utils.CategorizeError(err))
}

func TestFetch_ExactLimitAccepted(t *testing.T) {
	server, _ := mockServer(t, http.StatusOK, "image/jpeg", bytes.Repeat([]byte("a"), 1024))

	fetcher := NewFetcher(testClient(), 1024, "", testLogger())
	img, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, 1024, img.Size())
}

func TestFetch_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fetcher := NewFetcher(testClient(), 0, "", testLogger())
	_, err := fetcher.Fetch(ctx, server.URL)

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrFetchFailure))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetch_InvalidURL(t *testing.T) {
	fetcher := NewFetcher(testClient(), 0, "", testLogger())
	_, err := fetcher.Fetch(context.Background(), "http://[::1]:namedport")

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrRequestCreation))
}

func TestGetPage_PersonaAndBody(t *testing.T) {
	var ua, secFetch string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		secFetch = r.Header.Get("Sec-Fetch-Mode")
		w.Write([]byte(`<html><head><meta property="og:image" content="x"></head></html>`))
	}))
	defer server.Close()

	pf := NewPageFetcher(testClient(), newTestPool(2), 0, testLogger())
	body, err := pf.GetPage(context.Background(), server.URL, NavigationPersona)

	require.NoError(t, err)
	assert.Contains(t, body, "og:image")
	assert.Equal(t, DesktopUserAgent, ua)
	assert.Equal(t, "navigate", secFetch)
}

func TestGetPage_Truncates(t *testing.T) {
	server, _ := mockServer(t, http.StatusOK, "text/html", []byte(strings.Repeat("x", 500)))

	pf := NewPageFetcher(testClient(), nil, 100, testLogger())
	body, err := pf.GetPage(context.Background(), server.URL, BrowserPersona)

	require.NoError(t, err)
	assert.Len(t, body, 100)
}

func TestGetPage_Non200(t *testing.T) {
	server, _ := mockServer(t, http.StatusForbidden, "text/html", []byte("blocked"))

	pf := NewPageFetcher(testClient(), nil, 0, testLogger())
	_, err := pf.GetPage(context.Background(), server.URL, TwitterbotPersona)

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrClientHTTPError))
}

func TestGetPage_HostPermitTimeout(t *testing.T) {
	server, attempts := mockServer(t, http.StatusOK, "text/html", []byte("ok"))

	pool := newTestPool(1)
	host := strings.Split(strings.TrimPrefix(server.URL, "http://"), ":")[0]
	release, err := pool.Acquire(context.Background(), host)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	pf := NewPageFetcher(testClient(), pool, 0, testLogger())
	_, err = pf.GetPage(ctx, server.URL, BrowserPersona)

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrSemaphoreTimeout))
	assert.Equal(t, int32(0), attempts.Load())
}

func TestPersona_WithUserAgent(t *testing.T) {
	p := BrowserPersona.WithUserAgent("custom/2.0")
	assert.Equal(t, "custom/2.0", p.Headers["User-Agent"])
	assert.Equal(t, BrowserPersona.Headers["Accept"], p.Headers["Accept"])
	assert.Equal(t, DesktopUserAgent, BrowserPersona.Headers["User-Agent"])

	assert.Equal(t, BrowserPersona, BrowserPersona.WithUserAgent(""))
}
