package qrcode_test

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitcapture/pkg/qrcode"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPNG(t *testing.T) {
	t.Parallel()

	img, err := qrcode.PNG("https://fit.example.com/m/ABCD2345", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = qrcode.PNG("   ", 128)
	assert.ErrorIs(t, err, qrcode.ErrEmptyContent)

	_, err = qrcode.PNG(strings.Repeat("x", 8000), 128)
	assert.ErrorIs(t, err, qrcode.ErrGenerate)
}

func TestDataURI(t *testing.T) {
	t.Parallel()

	uri, err := qrcode.DataURI("https://fit.example.com/m/ABCD2345", 128)
	require.NoError(t, err)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(uri, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, pngMagic))
}
