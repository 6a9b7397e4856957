// Package imagefetch downloads and decode-validates question images.
package imagefetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Fetcher implements domain.ImageFetcher over HTTP with a bounded
// per-request timeout. One link's timeout cannot block another link: each
// Fetch runs independently and errors stay with the caller.
type Fetcher struct {
	hc       *http.Client
	maxBytes int64
}

// New constructs a Fetcher. timeout bounds the whole request, maxBytes
// caps the downloaded body. Downloads are traced like the model calls.
func New(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBytes: maxBytes,
	}
}

// Fetch downloads url, verifies the payload decodes as an image and
// returns the raw bytes together with the detected MIME type.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("op=imagefetch.Fetch url=%s: %w", url, err)
	}
	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("op=imagefetch.Fetch url=%s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("op=imagefetch.Fetch url=%s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("op=imagefetch.Fetch url=%s: %w", url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("op=imagefetch.Fetch url=%s: body exceeds %d bytes", url, f.maxBytes)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("op=imagefetch.Fetch url=%s: decode: %w", url, err)
	}
	return data, "image/" + format, nil
}
