package domain

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// QueryType discriminates the two query modalities.
type QueryType string

const (
	// QueryText is a free-text query.
	QueryText QueryType = "text"
	// QueryImage is an uploaded-image query.
	QueryImage QueryType = "image"
)

// ValidImageContentType reports whether a declared upload content type is an
// image type. Checked before any decoding happens.
func ValidImageContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// DecodeImage decodes uploaded image bytes. Corrupt or unsupported data fails
// here, before the bytes ever reach the embedding model.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	return img, nil
}
