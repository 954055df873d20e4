package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// File is one image handed to the upload endpoints.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// UploadImage stores one image on the image host and returns its URL.
func (c *Client) UploadImage(ctx context.Context, f File) (string, error) {
	body, ctype, err := multipartBody("file", []File{f})
	if err != nil {
		return "", err
	}
	var out UploadResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/upload/image", raw: body, contentType: ctype}, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload %s: empty url in response", f.Name)
	}
	return out.URL, nil
}

// UploadImages stores several images in one request. The backend may accept a
// subset; per-file failures are listed in the response's Errors.
func (c *Client) UploadImages(ctx context.Context, files []File) (BatchUploadResponse, error) {
	body, ctype, err := multipartBody("files", files)
	if err != nil {
		return BatchUploadResponse{}, err
	}
	var out BatchUploadResponse
	err = c.do(ctx, request{method: http.MethodPost, path: "/upload/images", raw: body, contentType: ctype}, &out)
	return out, err
}

// DeleteImage removes an uploaded image by URL.
func (c *Client) DeleteImage(ctx context.Context, imageURL string) error {
	q := url.Values{}
	q.Set("url", imageURL)
	return c.do(ctx, request{method: http.MethodDelete, path: "/upload/image", query: q}, nil)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(field string, files []File) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, quoteEscaper.Replace(f.Name)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return nil, "", fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
