// Package mzml provides structured, random-access reading of mzML
// mass-spectrometry data files. Spectra and chromatograms are located
// through a byte-offset index (the file's own trailing index when present
// and valid, otherwise a linear scan) and parsed one at a time; the
// base64-encoded numeric payloads stay undecoded until asked for.
package mzml

import (
	"github.com/cockroachdb/errors"
)

// CVParam contains values and attributes of a mzML Controlled Vocabulary term
// (http://www.peptideatlas.org/tmp/mzML1.1.0.html)
type CVParam struct {
	CVRef         string `xml:"cvRef,attr,omitempty"`
	Accession     string `xml:"accession,attr,omitempty"`
	Name          string `xml:"name,attr,omitempty"`
	Value         string `xml:"value,attr,omitempty"`
	UnitCVRef     string `xml:"unitCvRef,attr,omitempty"`
	UnitAccession string `xml:"unitAccession,attr,omitempty"`
	UnitName      string `xml:"unitName,attr,omitempty"`
}

// UserParam is a free-form key/value metadata entry without CV meaning.
type UserParam struct {
	Name          string `xml:"name,attr,omitempty"`
	Value         string `xml:"value,attr,omitempty"`
	Type          string `xml:"type,attr,omitempty"`
	UnitAccession string `xml:"unitAccession,attr,omitempty"`
	UnitName      string `xml:"unitName,attr,omitempty"`
}

// ParamGroupRef is a non-owning reference to a ReferenceableParamGroup,
// resolved against the file's group table during parsing.
type ParamGroupRef struct {
	Ref string `xml:"ref,attr"`
}

// ReferenceableParamGroup is a named set of params defined once at file
// scope and referenced by id from any record.
type ReferenceableParamGroup struct {
	ID         string
	CVParams   []CVParam
	UserParams []UserParam
}

// Peak contains the actual ms peak info
type Peak struct {
	Mz     float64
	Intens float64
}

// Polarity of a scan.
type Polarity int

const (
	PolarityUnknown Polarity = iota
	PolarityPositive
	PolarityNegative
)

// ArrayRole is the semantic meaning of a binary data array, resolved from
// its CV accession. Unrecognized accessions map to RoleOther with the raw
// accession retained on the array.
type ArrayRole int

const (
	RoleOther ArrayRole = iota
	RoleMz
	RoleIntensity
	RoleTime
	RoleIonMobility
	RoleCharge
	RoleSignalToNoise
	RoleWavelength
	RolePressure
	RoleTemperature
	RoleFlowRate
	RoleNoise
	RoleBaseline
	RoleResolution
	RoleMass
)

func (r ArrayRole) String() string {
	switch r {
	case RoleMz:
		return "m/z"
	case RoleIntensity:
		return "intensity"
	case RoleTime:
		return "time"
	case RoleIonMobility:
		return "ion mobility"
	case RoleCharge:
		return "charge"
	case RoleSignalToNoise:
		return "signal to noise"
	case RoleWavelength:
		return "wavelength"
	case RolePressure:
		return "pressure"
	case RoleTemperature:
		return "temperature"
	case RoleFlowRate:
		return "flow rate"
	case RoleNoise:
		return "noise"
	case RoleBaseline:
		return "baseline"
	case RoleResolution:
		return "resolution"
	case RoleMass:
		return "mass"
	}
	return "other"
}

// ValueType is the declared numeric precision of a binary data array.
type ValueType int

const (
	ValueTypeUnknown ValueType = iota
	ValueTypeFloat32
	ValueTypeFloat64
	ValueTypeInt32
	ValueTypeInt64
)

// width returns the element width in bytes, or 0 when unknown.
func (v ValueType) width() int {
	switch v {
	case ValueTypeFloat32, ValueTypeInt32:
		return 4
	case ValueTypeFloat64, ValueTypeInt64:
		return 8
	}
	return 0
}

// Compression is the declared compression scheme of a binary data array.
// The set is closed; an accession outside it fails decoding rather than
// guessing.
type Compression int

const (
	CompressionUnknown Compression = iota
	CompressionNone
	CompressionZlib
	CompressionZstd
	CompressionNumpressLinear
	CompressionNumpressPic
	CompressionNumpressSlof
	CompressionNumpressLinearZlib
	CompressionNumpressPicZlib
	CompressionNumpressSlofZlib
	CompressionNumpressLinearZstd
	CompressionNumpressPicZstd
	CompressionNumpressSlofZstd
)

// numpress reports whether the scheme decodes straight to floats, making
// the declared value type irrelevant.
func (c Compression) numpress() bool {
	return c >= CompressionNumpressLinear && c <= CompressionNumpressSlofZstd
}

// BinaryDataArray describes one encoded numeric payload of a spectrum or
// chromatogram. It records where the base64 text lives in the file and how
// to interpret it; it never holds decoded data. Decode reads, decompresses
// and reinterprets the payload on every call.
type BinaryDataArray struct {
	EncodedLength int // declared length of the base64 text, bytes
	ArrayLength   int // declared element count; -1 when undeclared
	Compression   Compression
	ValueType     ValueType
	Role          ArrayRole
	RoleAccession string // raw accession behind Role, kept verbatim
	CVParams      []CVParam
	UserParams    []UserParam

	offset int64 // byte range of the base64 payload in the stream
	length int64
	rd     *Reader
}

// ScanWindow is the m/z range monitored during a scan.
type ScanWindow struct {
	CVParams   []CVParam
	UserParams []UserParam
}

// Scan describes one instrument scan contributing to a spectrum.
type Scan struct {
	InstrumentConfigurationRef string
	CVParams                   []CVParam
	UserParams                 []UserParam
	ScanWindows                []ScanWindow
}

// IsolationWindow is the m/z window isolated for a precursor or product.
type IsolationWindow struct {
	CVParams   []CVParam
	UserParams []UserParam
}

// SelectedIon describes one ion selected for fragmentation.
type SelectedIon struct {
	CVParams   []CVParam
	UserParams []UserParam
}

// Activation describes the dissociation process applied to a precursor.
type Activation struct {
	CVParams   []CVParam
	UserParams []UserParam
}

// Precursor links a spectrum to the ion it was derived from. SpectrumRef
// is a lookup-only relation; the referenced spectrum may not be resident.
type Precursor struct {
	SpectrumRef        string
	SourceFileRef      string
	ExternalSpectrumID string
	IsolationWindow    *IsolationWindow
	SelectedIons       []SelectedIon
	Activation         *Activation
}

// Product links a spectrum to the ion it was fragmented into.
type Product struct {
	IsolationWindow *IsolationWindow
}

// Spectrum is one mass spectrum, parsed from its XML fragment. Binary
// arrays are descriptors only; their payloads are decoded on demand.
type Spectrum struct {
	ID                 string
	Ordinal            int // the file's own index attribute; not necessarily the list position
	DefaultArrayLength int
	DataProcessingRef  string
	SourceFileRef      string
	SpotID             string
	CVParams           []CVParam
	UserParams         []UserParam
	Scans              []Scan
	Precursors         []Precursor
	Products           []Product
	BinaryArrays       []BinaryDataArray
}

// Chromatogram is one chromatogram, parsed from its XML fragment.
type Chromatogram struct {
	ID                 string
	Ordinal            int
	DefaultArrayLength int
	DataProcessingRef  string
	CVParams           []CVParam
	UserParams         []UserParam
	Precursor          *Precursor
	Product            *Product
	BinaryArrays       []BinaryDataArray
}

var (
	// ErrNotFound means no record with the requested id exists
	ErrNotFound = errors.New("mzml: id not found")
	// ErrOutOfRange means an integer position outside the collection bounds
	ErrOutOfRange = errors.New("mzml: position out of range")
	// ErrMalformedIndex means the file's embedded offset index is unusable;
	// recovered internally by the scan fallback, surfaced only if that fails too
	ErrMalformedIndex = errors.New("mzml: malformed offset index")
	// ErrMalformedRecord means a spectrum or chromatogram XML fragment is
	// truncated or structurally invalid
	ErrMalformedRecord = errors.New("mzml: malformed record")
	// ErrReferenceResolution means a referenceableParamGroupRef points to a
	// group the file never defines
	ErrReferenceResolution = errors.New("mzml: unresolved param group reference")
	// ErrUnsupportedEncoding means an unrecognized compression or precision accession
	ErrUnsupportedEncoding = errors.New("mzml: unsupported binary encoding")
	// ErrDecode means the binary payload is corrupt
	ErrDecode = errors.New("mzml: corrupt binary data")
	// ErrLengthMismatch means the decoded element count disagrees with the
	// declared array length
	ErrLengthMismatch = errors.New("mzml: binary data length mismatch")
)
