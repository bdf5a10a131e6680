package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pgvector/pgvector-go"
	"github.com/x448/float16"
)

// Dim is the embedding dimension every stored and queried vector must have.
const Dim = 3072

var (
	ErrDimension = errors.New("vector dimension mismatch")
	ErrBlobSize  = errors.New("vector blob has invalid size")
)

func Validate(v []float32) error {
	if len(v) != Dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimension, Dim, len(v))
	}
	return nil
}

// ToLiteral renders v in pgvector text form, suitable for a $n::vector parameter.
func ToLiteral(v []float32) string {
	return pgvector.NewVector(v).String()
}

// ToHalfLiteral renders v in text form for a $n::halfvec parameter.
func ToHalfLiteral(v []float32) string {
	return pgvector.NewHalfVector(v).String()
}

// CosineDistance matches pgvector's <=> operator: 1 - cos(a, b).
// A zero vector on either side yields distance 1.
func CosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// EncodeFloat32 packs v as little-endian float32s.
func EncodeFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func DecodeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlobSize, len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// EncodeHalf packs v as little-endian IEEE 754 half-precision values.
func EncodeHalf(v []float32) []byte {
	buf := make([]byte, 2*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(x).Bits())
	}
	return buf
}

func DecodeHalf(b []byte) ([]float32, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlobSize, len(b))
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[i*2:])).Float32()
	}
	return out, nil
}
