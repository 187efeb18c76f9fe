package videocache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher 下载远程视频
type Fetcher interface {
	Fetch(ctx context.Context, url string) (payload []byte, contentType string, err error)
}

// HTTPFetcher 通过 HTTP GET 下载，超过 MaxBytes 返回 ErrEntryTooLarge
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if f.MaxBytes > 0 && resp.ContentLength > f.MaxBytes {
		return nil, "", ErrEntryTooLarge
	}

	body := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, "", err
	}
	if f.MaxBytes > 0 && int64(len(payload)) > f.MaxBytes {
		return nil, "", ErrEntryTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(payload)
	}
	return payload, contentType, nil
}
