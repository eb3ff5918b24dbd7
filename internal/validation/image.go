package validation

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"regexp"
	"strings"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// MaxImageBytes bounds the decoded payload of an encoded image.
const MaxImageBytes = 10 << 20

var dataURIPrefix = regexp.MustCompile(`^data:image/(\w+);base64,`)

// ImageMeta describes an accepted encoded image. Width and Height are zero
// when the payload header could not be decoded.
type ImageMeta struct {
	MIME   string
	Format string
	Bytes  int
	Width  int
	Height int
}

// ValidateEncodedImage checks that s is a base64 data URI of an allowed
// image type. The payload must decode and be non-empty. Dimensions are read
// from the header when the format decoder recognises it.
func ValidateEncodedImage(s string) (ImageMeta, error) {
	var meta ImageMeta
	if strings.TrimSpace(s) == "" {
		return meta, fmt.Errorf("image is required")
	}

	m := dataURIPrefix.FindStringSubmatch(s)
	if m == nil {
		return meta, fmt.Errorf("image must be a base64 encoded data URI")
	}
	subtype := strings.ToLower(m[1])
	if !isAllowedImageSubtype(subtype) {
		return meta, fmt.Errorf("image type %q is not supported", subtype)
	}

	payload := s[len(m[0]):]
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return meta, fmt.Errorf("image must not exceed %d bytes", MaxImageBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return meta, fmt.Errorf("image payload is not valid base64")
	}
	if len(raw) == 0 {
		return meta, fmt.Errorf("image payload is empty")
	}
	if len(raw) > MaxImageBytes {
		return meta, fmt.Errorf("image must not exceed %d bytes", MaxImageBytes)
	}

	meta.Format = subtype
	if subtype == "jpg" {
		meta.Format = "jpeg"
	}
	meta.MIME = "image/" + meta.Format
	meta.Bytes = len(raw)

	// best effort; opaque payloads are accepted as-is
	if cfg, format, decErr := image.DecodeConfig(bytes.NewReader(raw)); decErr == nil {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
		meta.Format = format
		meta.MIME = "image/" + format
	}

	return meta, nil
}

func isAllowedImageSubtype(subtype string) bool {
	switch subtype {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}
