// Package uploader is a client for the relay's upload endpoint.
package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const uploadPath = "/upload/"

// Client posts files to a relay server.
type Client struct {
	http *resty.Client
}

// New creates a Client for the relay at baseURL, e.g. http://localhost:5000.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout),
	}
}

// ContentTypeFor returns the Content-Type sent for a local file. Known image
// extensions map to their image type; everything else is sent as an opaque
// byte stream and stored as a generic file.
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// Upload sends body under name and returns the name the server stored it as.
func (c *Client) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("File-Name", name).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post(uploadPath)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload %s: server returned %s: %s", name, resp.Status(), strings.TrimSpace(resp.String()))
	}

	stored := strings.TrimSpace(resp.String())
	if stored == "" {
		stored = name
	}
	return stored, nil
}

// UploadFile sends the file at path, named after its base name.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return c.Upload(ctx, filepath.Base(path), ContentTypeFor(path), f)
}
