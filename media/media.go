// Package media loads local files and remote URLs into message parts.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jensroth-git/unifiedai/llm"
)

const (
	maxFetchBytes    = 32 << 20
	defaultFetchTime = 30 * time.Second
)

// extension fallbacks for types the platform mime registry commonly
// lacks
var extraMIMETypes = map[string]string{
	".heic": "image/heic",
	".m4a":  "audio/mp4",
	".mkv":  "video/x-matroska",
	".oga":  "audio/ogg",
	".ogv":  "video/ogg",
	".webm": "video/webm",
}

// MIMEType returns the MIME type for a file path based on its
// extension, or empty when unknown.
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extraMIMETypes[ext]; ok {
		return mt
	}
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return ""
	}
	// strip any charset parameter
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		return base
	}
	return mt
}

// LoadFile reads a local file into a base64-encoded part.
func LoadFile(path string) (llm.MediaPart, error) {
	mt := MIMEType(path)
	if mt == "" {
		return llm.MediaPart{}, fmt.Errorf("cannot determine MIME type for %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return llm.MediaPart{}, fmt.Errorf("failed to read media file: %w", err)
	}

	return llm.MediaPart{
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mt,
	}, nil
}

// FetchURL downloads a remote resource into a base64-encoded part. The
// MIME type comes from the Content-Type header, falling back to the URL
// extension.
func FetchURL(ctx context.Context, url string) (llm.MediaPart, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultFetchTime)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return llm.MediaPart{}, fmt.Errorf("invalid media URL: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return llm.MediaPart{}, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.MediaPart{}, fmt.Errorf("failed to fetch media: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return llm.MediaPart{}, fmt.Errorf("failed to read media body: %w", err)
	}

	mt := resp.Header.Get("Content-Type")
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		mt = base
	}
	if mt == "" || mt == "application/octet-stream" {
		if byExt := MIMEType(url); byExt != "" {
			mt = byExt
		}
	}
	if mt == "" {
		return llm.MediaPart{}, fmt.Errorf("cannot determine MIME type for %s", url)
	}

	return llm.MediaPart{
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mt,
	}, nil
}

// ImageFromFile loads a local image file into an image message.
func ImageFromFile(path string) (llm.Message, error) {
	part, err := LoadFile(path)
	if err != nil {
		return llm.Message{}, err
	}
	if !strings.HasPrefix(part.MIMEType, "image/") {
		return llm.Message{}, fmt.Errorf("%s is not an image (%s)", path, part.MIMEType)
	}
	return llm.NewImageMessage(part), nil
}
