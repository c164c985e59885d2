package httpclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/hazardwatch/hazardwatch/internal/errors"
)

// ErrTooLarge is returned when a download exceeds its size limit.
var ErrTooLarge = errors.NewStd("download exceeds size limit")

// Downloaded describes a file fetched to a temporary location.
type Downloaded struct {
	Path     string // temp file path, removed by Cleanup
	Filename string // name derived from the URL
	Size     int64
	MimeType string
}

// Cleanup removes the temporary file. Safe to call more than once.
func (d *Downloaded) Cleanup() {
	if d == nil || d.Path == "" {
		return
	}
	_ = os.Remove(d.Path)
	d.Path = ""
}

// Download fetches url into a temporary file, enforcing maxBytes.
// The mime type is sniffed from content when the server does not declare one.
// On any error the temporary file has already been removed.
func (c *Client) Download(ctx context.Context, url string, maxBytes int64, opts ...RequestOption) (*Downloaded, error) {
	resp, err := c.getWithRetry(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fileError(url, fmt.Errorf("%w: declared %d bytes, limit %d", ErrTooLarge, resp.ContentLength, maxBytes))
	}

	tmp, err := os.CreateTemp(c.tempDir, "hazardwatch-dl-*")
	if err != nil {
		return nil, fileError(url, fmt.Errorf("creating temp file: %w", err))
	}
	d := &Downloaded{Path: tmp.Name(), Filename: filenameFromURL(url)}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}

	sniff := make([]byte, 512)
	n, readErr := io.ReadFull(reader, sniff)
	sniff = sniff[:n]
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		_ = tmp.Close()
		d.Cleanup()
		return nil, fileError(url, fmt.Errorf("reading body: %w", readErr))
	}

	written, err := tmp.Write(sniff)
	if err == nil {
		var rest int64
		rest, err = io.Copy(tmp, reader)
		d.Size = int64(written) + rest
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		d.Cleanup()
		return nil, fileError(url, fmt.Errorf("writing temp file: %w", err))
	}

	if maxBytes > 0 && d.Size > maxBytes {
		d.Cleanup()
		return nil, fileError(url, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxBytes))
	}

	d.MimeType = declaredMimeType(resp.Header.Get("Content-Type"))
	if d.MimeType == "" || d.MimeType == "application/octet-stream" {
		d.MimeType = declaredMimeType(http.DetectContentType(sniff))
	}
	return d, nil
}

func declaredMimeType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

func filenameFromURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	name := path.Base(raw)
	if name == "." || name == "/" || name == "" {
		return "download"
	}
	return name
}

func fileError(url string, err error) error {
	return errors.New(err).
		Component("httpclient").
		Category(errors.CategoryAttachment).
		NetworkContext(url, 0).
		Build()
}
