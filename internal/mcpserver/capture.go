package mcpserver

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/mldataset/internal/models"
)

type addResult struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Size     int    `json:"size"`
}

// decodeItem turns tool input into an image file. content is either plain
// base64 or a data:<type>;base64,<data> URI. Without a name the item is
// stored as a capture named after its detected type.
func decodeItem(name, content string) (models.ImageFile, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	if strings.HasPrefix(content, "data:") {
		data, ext, err = decodeDataURI(content)
	} else {
		data, err = decodeBase64(content)
	}
	if err != nil {
		return models.ImageFile{}, err
	}
	if len(data) == 0 {
		return models.ImageFile{}, fmt.Errorf("empty content")
	}
	if len(data) > models.MaxItemSize {
		return models.ImageFile{}, fmt.Errorf("file too large: %d bytes (max %d)", len(data), models.MaxItemSize)
	}

	if name != "" {
		return models.ImageFile{FileName: name, Content: data}, nil
	}
	if ext == "" {
		ext = sniffExtension(data)
	}
	return models.NewCapture(data, ext), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := decodeBase64(rest[commaIdx+1:])
	if err != nil {
		return nil, "", err
	}

	mediaType := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := models.CaptureExtension(mediaType)
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mediaType)
	}
	return data, ext, nil
}

func decodeBase64(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// sniffExtension maps detected content to a capture extension, or "".
func sniffExtension(data []byte) string {
	detected := http.DetectContentType(data)
	return models.CaptureExtension(strings.Split(detected, ";")[0])
}
