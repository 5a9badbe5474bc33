package mzml

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// MS-Numpress codecs (CV terms MS:1002312, MS:1002313, MS:1002314).
// Linear prediction and positive integer compression store values as
// two's-complement deltas packed into half bytes; short logged float
// stores scaled logarithms as 16-bit integers. The fixed point scaling
// factor leads the payload as a big-endian IEEE double. Encoders are
// provided so the round-trip behavior is testable without external data.

func numpressPutFixedPoint(dst []byte, fixedPoint float64) {
	binary.BigEndian.PutUint64(dst, math.Float64bits(fixedPoint))
}

func numpressFixedPoint(src []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(src))
}

// halfByteReader consumes 4-bit quantities from a byte slice, high nibble
// first.
type halfByteReader struct {
	data []byte
	pos  int
	half bool // next nibble is the low one of data[pos]
}

func (r *halfByteReader) remaining() bool {
	return r.pos < len(r.data)
}

// atPadding reports whether only a single zero low nibble is left, which
// encoders emit to round the stream up to whole bytes.
func (r *halfByteReader) atPadding() bool {
	return r.pos == len(r.data)-1 && r.half && r.data[r.pos]&0xf == 0
}

func (r *halfByteReader) next() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errors.Wrap(ErrDecode, "numpress: truncated half-byte stream")
	}
	var hb byte
	if !r.half {
		hb = r.data[r.pos] >> 4
	} else {
		hb = r.data[r.pos] & 0xf
		r.pos++
	}
	r.half = !r.half
	return hb, nil
}

// readInt decodes one variable-length two's-complement int32. The leading
// count nibble gives the number of leading zero nibbles (0-8) or, offset
// by 8, the number of leading 0xf nibbles; the remaining value nibbles
// follow least significant first.
func (r *halfByteReader) readInt() (int32, error) {
	head, err := r.next()
	if err != nil {
		return 0, err
	}
	var res uint32
	var n int
	if head <= 8 {
		n = int(head)
	} else {
		n = int(head) - 8
		for i := 0; i < n; i++ {
			res |= 0xf0000000 >> (4 * i)
		}
	}
	if n == 8 {
		return 0, nil
	}
	for i := n; i < 8; i++ {
		hb, err := r.next()
		if err != nil {
			return 0, err
		}
		res |= uint32(hb) << (4 * (i - n))
	}
	return int32(res), nil
}

// halfByteWriter packs 4-bit quantities into bytes, high nibble first.
type halfByteWriter struct {
	out  []byte
	cur  byte
	half bool
}

func (w *halfByteWriter) write(hb byte) {
	if !w.half {
		w.cur = hb << 4
		w.half = true
	} else {
		w.out = append(w.out, w.cur|hb&0xf)
		w.half = false
	}
}

func (w *halfByteWriter) flush() []byte {
	if w.half {
		w.out = append(w.out, w.cur)
		w.half = false
	}
	return w.out
}

func (w *halfByteWriter) writeInt(x int32) {
	u := uint32(x)
	switch {
	case u&0xf0000000 == 0:
		l := 8
		for i := 0; i < 8; i++ {
			if u&(0xf0000000>>(4*i)) != 0 {
				l = i
				break
			}
		}
		w.write(byte(l))
		for i := l; i < 8; i++ {
			w.write(byte(u >> (4 * (i - l)) & 0xf))
		}
	case u&0xf0000000 == 0xf0000000:
		l := 7
		for i := 0; i < 8; i++ {
			if u&(0xf0000000>>(4*i)) != 0xf0000000>>(4*i) {
				l = i
				break
			}
		}
		w.write(byte(l + 8))
		for i := l; i < 8; i++ {
			w.write(byte(u >> (4 * (i - l)) & 0xf))
		}
	default:
		w.write(0)
		for i := 0; i < 8; i++ {
			w.write(byte(u >> (4 * i) & 0xf))
		}
	}
}

// numpressOptimalLinearFixedPoint picks the largest scaling factor whose
// scaled second-order deltas still fit an int32.
func numpressOptimalLinearFixedPoint(data []float64) float64 {
	switch len(data) {
	case 0:
		return 0
	case 1:
		return math.Floor(0x7fffffff / data[0])
	}
	maxAbs := math.Max(data[0], data[1])
	for i := 2; i < len(data); i++ {
		extrapol := data[i-1] + (data[i-1] - data[i-2])
		maxAbs = math.Max(maxAbs, math.Ceil(math.Abs(data[i]-extrapol)+1))
	}
	return math.Floor(0x7fffffff / maxAbs)
}

func numpressOptimalSlofFixedPoint(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	maxVal := 1.0
	for _, v := range data {
		maxVal = math.Max(maxVal, math.Log(v+1))
	}
	return math.Floor(0xffff / maxVal)
}

// numpressEncodeLinear stores the first two values as scaled int32s and
// every following value as the delta against a two-point linear
// extrapolation.
func numpressEncodeLinear(data []float64, fixedPoint float64) []byte {
	out := make([]byte, 8, 16+len(data)*5)
	numpressPutFixedPoint(out, fixedPoint)
	if len(data) == 0 {
		return out
	}
	i1 := int64(data[0]*fixedPoint + 0.5)
	out = binary.LittleEndian.AppendUint32(out, uint32(i1))
	if len(data) == 1 {
		return out
	}
	i2 := int64(data[1]*fixedPoint + 0.5)
	out = binary.LittleEndian.AppendUint32(out, uint32(i2))

	w := halfByteWriter{out: out}
	for i := 2; i < len(data); i++ {
		i0 := i1
		i1 = i2
		i2 = int64(data[i]*fixedPoint + 0.5)
		extrapol := i1 + (i1 - i0)
		w.writeInt(int32(i2 - extrapol))
	}
	return w.flush()
}

func numpressDecodeLinear(data []byte) ([]float64, error) {
	if len(data) < 8 {
		return nil, errors.Wrap(ErrDecode, "numpress linear: payload shorter than fixed point")
	}
	fixedPoint := numpressFixedPoint(data)
	if fixedPoint <= 0 || math.IsInf(fixedPoint, 0) || math.IsNaN(fixedPoint) {
		return nil, errors.Wrap(ErrDecode, "numpress linear: invalid fixed point")
	}
	if len(data) == 8 {
		return []float64{}, nil
	}
	if len(data) < 12 {
		return nil, errors.Wrap(ErrDecode, "numpress linear: truncated payload")
	}
	result := make([]float64, 0, (len(data)-8)/2)
	i1 := int64(int32(binary.LittleEndian.Uint32(data[8:])))
	result = append(result, float64(i1)/fixedPoint)
	if len(data) == 12 {
		return result, nil
	}
	if len(data) < 16 {
		return nil, errors.Wrap(ErrDecode, "numpress linear: truncated payload")
	}
	i2 := int64(int32(binary.LittleEndian.Uint32(data[12:])))
	result = append(result, float64(i2)/fixedPoint)

	r := halfByteReader{data: data[16:]}
	for r.remaining() {
		if r.atPadding() {
			break
		}
		diff, err := r.readInt()
		if err != nil {
			return nil, err
		}
		i0 := i1
		i1 = i2
		extrapol := i1 + (i1 - i0)
		i2 = extrapol + int64(diff)
		result = append(result, float64(i2)/fixedPoint)
	}
	return result, nil
}

// numpressEncodePic stores each value rounded to its nearest non-negative
// integer.
func numpressEncodePic(data []float64) []byte {
	var w halfByteWriter
	for _, v := range data {
		w.writeInt(int32(int64(v + 0.5)))
	}
	return w.flush()
}

func numpressDecodePic(data []byte) ([]float64, error) {
	result := make([]float64, 0, len(data)/2)
	r := halfByteReader{data: data}
	for r.remaining() {
		if r.atPadding() {
			break
		}
		count, err := r.readInt()
		if err != nil {
			return nil, err
		}
		result = append(result, float64(count))
	}
	return result, nil
}

// numpressEncodeSlof stores each value's scaled natural log as an
// unsigned 16-bit little-endian integer.
func numpressEncodeSlof(data []float64, fixedPoint float64) []byte {
	out := make([]byte, 8, 8+len(data)*2)
	numpressPutFixedPoint(out, fixedPoint)
	for _, v := range data {
		x := uint16(math.Log(v+1)*fixedPoint + 0.5)
		out = binary.LittleEndian.AppendUint16(out, x)
	}
	return out
}

func numpressDecodeSlof(data []byte) ([]float64, error) {
	if len(data) < 8 {
		return nil, errors.Wrap(ErrDecode, "numpress slof: payload shorter than fixed point")
	}
	fixedPoint := numpressFixedPoint(data)
	if fixedPoint <= 0 || math.IsInf(fixedPoint, 0) || math.IsNaN(fixedPoint) {
		return nil, errors.Wrap(ErrDecode, "numpress slof: invalid fixed point")
	}
	if (len(data)-8)%2 != 0 {
		return nil, errors.Wrap(ErrDecode, "numpress slof: truncated payload")
	}
	result := make([]float64, 0, (len(data)-8)/2)
	for i := 8; i < len(data); i += 2 {
		x := binary.LittleEndian.Uint16(data[i:])
		result = append(result, math.Exp(float64(x)/fixedPoint)-1)
	}
	return result, nil
}
