package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

// Decode reads the array's payload and produces its numeric values:
// base64 decode, decompress per the declared compression kind, then
// reinterpret the bytes as the declared little-endian precision. Decoding
// is pure; identical descriptor and stream bytes always yield identical
// results, and nothing is cached.
func (a *BinaryDataArray) Decode() ([]float64, error) {
	return decodeArray(a.rd.stream.ra, a)
}

func decodeArray(ra io.ReaderAt, a *BinaryDataArray) ([]float64, error) {
	if a.Compression == CompressionUnknown {
		return nil, errors.Wrap(ErrUnsupportedEncoding, "no recognized compression accession")
	}
	if !a.Compression.numpress() && a.ValueType == ValueTypeUnknown {
		return nil, errors.Wrap(ErrUnsupportedEncoding, "no recognized binary data type accession")
	}

	text := make([]byte, a.length)
	if a.length > 0 {
		if _, err := ra.ReadAt(text, a.offset); err != nil && err != io.EOF {
			return nil, errors.Wrapf(ErrDecode, "read payload at offset %d: %v", a.offset, err)
		}
	}
	data, err := base64.StdEncoding.DecodeString(string(trimXMLSpace(text)))
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "base64: %v", err)
	}
	if len(data) == 0 {
		if a.ArrayLength > 0 {
			return nil, errors.Wrapf(ErrLengthMismatch, "empty payload, %d elements declared", a.ArrayLength)
		}
		return []float64{}, nil
	}

	switch a.Compression {
	case CompressionZlib, CompressionNumpressLinearZlib, CompressionNumpressPicZlib, CompressionNumpressSlofZlib:
		if data, err = inflate(data); err != nil {
			return nil, err
		}
	case CompressionZstd, CompressionNumpressLinearZstd, CompressionNumpressPicZstd, CompressionNumpressSlofZstd:
		if data, err = unzstd(data); err != nil {
			return nil, err
		}
	}

	var values []float64
	switch a.Compression {
	case CompressionNumpressLinear, CompressionNumpressLinearZlib, CompressionNumpressLinearZstd:
		values, err = numpressDecodeLinear(data)
	case CompressionNumpressPic, CompressionNumpressPicZlib, CompressionNumpressPicZstd:
		values, err = numpressDecodePic(data)
	case CompressionNumpressSlof, CompressionNumpressSlofZlib, CompressionNumpressSlofZstd:
		values, err = numpressDecodeSlof(data)
	default:
		values, err = reinterpret(data, a.ValueType)
	}
	if err != nil {
		return nil, err
	}

	if a.ArrayLength >= 0 && len(values) != a.ArrayLength {
		return nil, errors.Wrapf(ErrLengthMismatch, "decoded %d elements, %d declared", len(values), a.ArrayLength)
	}
	return values, nil
}

// reinterpret converts raw little-endian bytes into numbers of the
// declared precision, exactly the way the scan filler does it: one
// element per fixed-width slot.
func reinterpret(data []byte, vt ValueType) ([]float64, error) {
	width := vt.width()
	if width == 0 {
		return nil, errors.Wrap(ErrUnsupportedEncoding, "no recognized binary data type accession")
	}
	if len(data)%width != 0 {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d bytes is not a multiple of element width %d", len(data), width)
	}
	cnt := len(data) / width
	values := make([]float64, cnt)
	switch vt {
	case ValueTypeFloat64:
		for i := 0; i < cnt; i++ {
			bits := binary.LittleEndian.Uint64(data[i*8:])
			values[i] = math.Float64frombits(bits)
		}
	case ValueTypeFloat32:
		for i := 0; i < cnt; i++ {
			bits := binary.LittleEndian.Uint32(data[i*4:])
			values[i] = float64(math.Float32frombits(bits))
		}
	case ValueTypeInt32:
		for i := 0; i < cnt; i++ {
			values[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case ValueTypeInt64:
		for i := 0; i < cnt; i++ {
			values[i] = float64(int64(binary.LittleEndian.Uint64(data[i*8:])))
		}
	}
	return values, nil
}

func inflate(data []byte) ([]byte, error) {
	z, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "zlib: %v", err)
	}
	defer z.Close()
	out, err := io.ReadAll(z)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "zlib: %v", err)
	}
	return out, nil
}

func unzstd(data []byte) ([]byte, error) {
	z, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "zstd: %v", err)
	}
	defer z.Close()
	out, err := z.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "zstd: %v", err)
	}
	return out, nil
}

// trimXMLSpace drops the whitespace some writers wrap base64 text with;
// the strict stdlib decoder rejects it otherwise.
func trimXMLSpace(text []byte) []byte {
	if !bytes.ContainsAny(text, " \t\r\n") {
		return text
	}
	out := make([]byte, 0, len(text))
	for _, b := range text {
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			out = append(out, b)
		}
	}
	return out
}
