package attachment

import (
	"context"
	"strings"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
)

// Fetcher downloads attachment payloads to temporary files.
type Fetcher interface {
	Download(ctx context.Context, url string, maxBytes int64, opts ...httpclient.RequestOption) (*httpclient.Downloaded, error)
}

// Downloader fetches remote attachment files and validates them.
type Downloader struct {
	client   Fetcher
	maxBytes int64
	accept   []string // accepted mime type prefixes
}

// NewDownloader creates a Downloader accepting images up to maxBytes.
func NewDownloader(client Fetcher, maxBytes int64) *Downloader {
	return &Downloader{client: client, maxBytes: maxBytes, accept: []string{"image/"}}
}

// Download fetches url. The caller must call Cleanup on the result once the
// file is imported or no longer needed; on error nothing is left behind.
func (d *Downloader) Download(ctx context.Context, url string) (*httpclient.Downloaded, error) {
	file, err := d.client.Download(ctx, url, d.maxBytes)
	if err != nil {
		return nil, err
	}
	if !d.accepted(file.MimeType) {
		file.Cleanup()
		return nil, errors.Newf("attachment has unsupported type %q", file.MimeType).
			Component("attachment").
			Category(errors.CategoryValidation).
			Context("url", url).
			Build()
	}
	if file.Size == 0 {
		file.Cleanup()
		return nil, errors.Newf("attachment is empty").
			Component("attachment").
			Category(errors.CategoryValidation).
			Context("url", url).
			Build()
	}
	return file, nil
}

func (d *Downloader) accepted(mimeType string) bool {
	for _, prefix := range d.accept {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
