package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/metrics"
	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// minOpaqueBodyBytes is the size above which a response with a non-image
// content type is still accepted as image bytes. Plenty of hosts serve
// images as application/octet-stream or text/plain.
const minOpaqueBodyBytes = 1000

// Fetcher performs single-attempt image byte fetches against resolved URLs.
// Retry policy, if any, belongs to the caller.
type Fetcher struct {
	client   *http.Client
	persona  Persona
	maxBytes int64 // 0 means unlimited
	log      *logrus.Entry
}

// NewFetcher creates a Fetcher. userAgent overrides the image persona's UA when non-empty.
func NewFetcher(client *http.Client, maxBytes int64, userAgent string, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:   client,
		persona:  ImagePersona.WithUserAgent(userAgent),
		maxBytes: maxBytes,
		log:      log,
	}
}

// Fetch GETs rawURL and returns its bytes and content type.
// Every failure wraps utils.ErrFetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.Image, error) {
	img, err := f.fetch(ctx, rawURL)
	if err != nil {
		metrics.RecordFetch(utils.CategorizeError(err))
		f.log.WithFields(logrus.Fields{"url": rawURL, "category": utils.CategorizeError(err)}).Warnf("Image fetch failed: %v", err)
		return nil, fmt.Errorf("%w: %w", utils.ErrFetchFailure, err)
	}
	metrics.RecordFetch("ok")
	f.log.WithFields(logrus.Fields{"url": rawURL, "bytes": img.Size(), "content_type": img.ContentType}).Debug("Fetched image")
	return img, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*models.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	f.persona.Apply(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, err
	}

	body, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = models.DefaultContentType
	}
	if !strings.Contains(strings.ToLower(contentType), "image") && len(body) <= minOpaqueBodyBytes {
		return nil, fmt.Errorf("%w: content type %q with %d byte body", utils.ErrNotImage, contentType, len(body))
	}

	return &models.Image{Data: body, ContentType: contentType}, nil
}

// checkStatus maps anything other than 200 onto the HTTP sentinel errors.
func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, resp.Status)
	case code >= 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, code, resp.Status)
	default:
		return fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, code, resp.Status)
	}
}

// readLimited reads at most max bytes from r, failing with ErrImageTooLarge beyond that.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
		}
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if int64(len(body)) > max {
		return nil, fmt.Errorf("%w: more than %d bytes", utils.ErrImageTooLarge, max)
	}
	return body, nil
}

// PageFetcher downloads HTML pages for scraping. Requests to the same host
// share a HostSemaphorePool so bursts cannot hammer one platform.
type PageFetcher struct {
	client   *http.Client
	pool     *HostSemaphorePool
	maxBytes int64
	log      *logrus.Entry
}

// NewPageFetcher creates a PageFetcher. pool may be nil to disable the host cap.
func NewPageFetcher(client *http.Client, pool *HostSemaphorePool, maxBytes int64, log *logrus.Entry) *PageFetcher {
	return &PageFetcher{client: client, pool: pool, maxBytes: maxBytes, log: log}
}

// GetPage fetches pageURL with persona and returns the body as a string.
// A body above the byte limit is truncated, not rejected; og tags live in <head>.
func (p *PageFetcher) GetPage(ctx context.Context, pageURL string, persona Persona) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	persona.Apply(req)

	if p.pool != nil {
		release, err := p.pool.Acquire(ctx, req.URL.Hostname())
		if err != nil {
			return "", err
		}
		defer release()
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var reader io.Reader = resp.Body
	if p.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, p.maxBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	p.log.WithFields(logrus.Fields{"url": pageURL, "persona": persona.Name, "bytes": len(body)}).Debug("Fetched page")
	return string(body), nil
}
