// Package media turns image payloads sent by clients into stable references.
//
// Clients send either an http(s) URL, which is stored untouched, or a base64
// data URL, which is uploaded to object storage and replaced by its public URL.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidImage is returned for payloads that are neither a URL nor an image data URL.
	ErrInvalidImage = errors.New("invalid image")
	// ErrImageTooLarge is returned when the decoded image exceeds the configured limit.
	ErrImageTooLarge = errors.New("image too large")
	// ErrUploadsDisabled is returned for data URLs when no object storage is configured.
	ErrUploadsDisabled = errors.New("image uploads are not configured")
)

// Uploader stores an object and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Images resolves client image payloads into references.
type Images struct {
	uploader Uploader
	maxBytes int64
}

// NewImages builds an image resolver. uploader may be nil, in which case only URLs are accepted.
func NewImages(uploader Uploader, maxBytes int64) *Images {
	return &Images{uploader: uploader, maxBytes: maxBytes}
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Resolve returns the reference to persist for payload. An empty payload yields an empty reference.
// prefix namespaces the uploaded object key (for example "messages/12").
func (i *Images) Resolve(ctx context.Context, prefix, payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil
	}

	if strings.HasPrefix(payload, "data:") {
		return i.upload(ctx, prefix, payload)
	}

	u, err := url.Parse(payload)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidImage
	}
	return payload, nil
}

func (i *Images) upload(ctx context.Context, prefix, dataURL string) (string, error) {
	contentType, data, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return "", ErrImageTooLarge
	}
	if i.uploader == nil {
		return "", ErrUploadsDisabled
	}

	key := strings.Trim(prefix, "/") + "/" + uuid.NewString() + extensions[contentType]
	ref, err := i.uploader.Upload(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return ref, nil
}

// decodeDataURL parses "data:image/png;base64,<payload>".
func decodeDataURL(dataURL string) (string, []byte, error) {
	header, encoded, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok {
		return "", nil, ErrInvalidImage
	}

	contentType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return "", nil, ErrInvalidImage
	}
	if _, known := extensions[contentType]; !known {
		return "", nil, ErrInvalidImage
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(data) == 0 {
		return "", nil, ErrInvalidImage
	}
	return contentType, data, nil
}
