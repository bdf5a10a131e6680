package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(make([]float32, Dim)))

	err := Validate(make([]float32, 1536))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimension))
	assert.Contains(t, err.Error(), "expected 3072, got 1536")

	assert.ErrorIs(t, Validate(nil), ErrDimension)
}

func TestToLiteral(t *testing.T) {
	assert.Equal(t, "[1,-0.5,0]", ToLiteral([]float32{1, -0.5, 0}))
	assert.Equal(t, "[1,-0.5,0]", ToHalfLiteral([]float32{1, -0.5, 0}))
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0, 0}
	assert.InDelta(t, 0, CosineDistance(a, a), 1e-9)
	assert.InDelta(t, 1, CosineDistance(a, []float32{0, 1, 0}), 1e-9)
	assert.InDelta(t, 2, CosineDistance(a, []float32{-1, 0, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance(a, []float32{0, 0, 0}), 1e-9)
}

func TestFloat32Blob(t *testing.T) {
	in := []float32{0.25, -3.5, float32(math.Pi)}
	b := EncodeFloat32(in)
	require.Len(t, b, 12)
	out, err := DecodeFloat32(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeFloat32([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBlobSize)
}

func TestHalfBlobLosesPrecisionOnly(t *testing.T) {
	in := []float32{0.5, -1, 0.333333}
	b := EncodeHalf(in)
	require.Len(t, b, 6)
	out, err := DecodeHalf(b)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), out[0])
	assert.Equal(t, float32(-1), out[1])
	assert.InDelta(t, 0.333333, out[2], 1e-3)

	_, err = DecodeHalf([]byte{1})
	assert.ErrorIs(t, err, ErrBlobSize)
}
