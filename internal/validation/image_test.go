package validation

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestValidateEncodedImage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"Opaque Payload", "data:image/png;base64,AAAA", ""},
		{"Jpg Alias", "data:image/jpg;base64,AAAA", ""},
		{"Webp", "data:image/webp;base64,AAAA", ""},
		{"Empty", "", "required"},
		{"Not A Data URI", "not-a-data-uri", "data URI"},
		{"Unsupported Type", "data:image/svg;base64,AAAA", "not supported"},
		{"Bad Base64", "data:image/png;base64,@@@@", "base64"},
		{"Empty Payload", "data:image/png;base64,", "empty"},
		{"Wrong Media Type", "data:text/plain;base64,AAAA", "data URI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateEncodedImage(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEncodedImageReadsDimensions(t *testing.T) {
	t.Parallel()

	meta, err := ValidateEncodedImage(encodePNG(t, 4, 3))
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, "image/png", meta.MIME)
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, 3, meta.Height)
}

func TestValidateEncodedImageOpaqueHasNoDimensions(t *testing.T) {
	t.Parallel()

	meta, err := ValidateEncodedImage("data:image/jpg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", meta.Format)
	assert.Equal(t, 3, meta.Bytes)
	assert.Zero(t, meta.Width)
}

func TestValidateEncodedImageTooLarge(t *testing.T) {
	t.Parallel()

	payload := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", MaxImageBytes+1)))
	_, err := ValidateEncodedImage("data:image/png;base64," + payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceed")
}
