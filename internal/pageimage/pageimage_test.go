package pageimage

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64RoundTrip(t *testing.T) {
	data := []byte{0xff, 0xd8, 0x00, 0x10, 0x7f}
	b64 := EncodeToBase64(data)
	back, err := DecodeFromBase64(b64)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestDecodeFromBase64Invalid(t *testing.T) {
	_, err := DecodeFromBase64("not!!!base64")
	assert.Error(t, err)
}

func TestGetImageDimensions(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 48))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))

	w, h, err := GetImageDimensions(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 120, w)
	assert.Equal(t, 48, h)
}

func TestGetImageDimensionsInvalid(t *testing.T) {
	_, _, err := GetImageDimensions([]byte("not a jpeg"))
	assert.Error(t, err)
}
