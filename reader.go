package mzml

import (
	"io"
)

// Options tunes how a file is opened. The zero value is ready to use.
type Options struct {
	// Logger receives notes about degenerate files the reader recovers
	// from. Defaults to the stdlib log package.
	Logger Logger

	// ForceScan ignores the file's embedded index and always rebuilds the
	// offset index by scanning.
	ForceScan bool

	// IndexProbes is how many embedded-index entries are verified against
	// the actual stream before the index is trusted. 0 means the default
	// of 3; a negative value disables validation entirely.
	IndexProbes int
}

func (o *Options) indexProbes() int {
	switch {
	case o.IndexProbes == 0:
		return 3
	case o.IndexProbes < 0:
		return 0
	}
	return o.IndexProbes
}

func (o *Options) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return DefaultLogger{}
}

// Reader provides indexed, lazy access to the records of one mzML file.
// Opening a Reader reads the header metadata and the offset index; record
// content stays on disk until a lookup asks for it, and binary array
// payloads stay on disk until decoded. A Reader is safe for concurrent
// lookups once opened.
type Reader struct {
	stream *byteStream
	lg     Logger

	meta   *fileMetadata
	groups groupTable

	specIdx  *offsetIndex
	chromIdx *offsetIndex
}

// Open opens the mzML file at path. Files ending in .gz or .igz are
// decompressed into memory first. A nil opts uses the defaults.
func Open(path string, opts *Options) (*Reader, error) {
	s, err := openStream(path)
	if err != nil {
		return nil, err
	}
	rd, err := newReader(s, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	return rd, nil
}

// OpenReader opens an mzML document already available as a random-access
// byte source of the given size. The caller keeps ownership of ra; Close
// will not close it.
func OpenReader(ra io.ReaderAt, size int64, opts *Options) (*Reader, error) {
	return newReader(&byteStream{ra: ra, size: size}, opts)
}

func newReader(s *byteStream, opts *Options) (*Reader, error) {
	if opts == nil {
		opts = &Options{}
	}
	lg := opts.logger()

	meta, groups, err := readHeader(s)
	if err != nil {
		return nil, err
	}
	specIdx, chromIdx, err := buildIndexes(s, opts, lg)
	if err != nil {
		return nil, err
	}
	return &Reader{
		stream:   s,
		lg:       lg,
		meta:     meta,
		groups:   groups,
		specIdx:  specIdx,
		chromIdx: chromIdx,
	}, nil
}

// Close releases the underlying file. Records and binary arrays obtained
// from this reader must not be decoded afterwards.
func (rd *Reader) Close() error {
	return rd.stream.Close()
}

// Spectra returns the lookup collection over the file's spectra.
func (rd *Reader) Spectra() *SpectrumList {
	return &SpectrumList{rd: rd, idx: rd.specIdx}
}

// Chromatograms returns the lookup collection over the file's
// chromatograms.
func (rd *Reader) Chromatograms() *ChromatogramList {
	return &ChromatogramList{rd: rd, idx: rd.chromIdx}
}

// IndexFromScan reports whether the offset index was rebuilt by scanning
// rather than read from the file's embedded index.
func (rd *Reader) IndexFromScan() bool {
	return rd.specIdx.fromScan
}

// Version returns the mzML schema version the file declares.
func (rd *Reader) Version() string { return rd.meta.version }

// CVs returns the controlled vocabularies the file's params draw from.
func (rd *Reader) CVs() []CV { return rd.meta.cvs }

// MSOntologyVersion returns the declared version of the PSI-MS ontology,
// empty when the file does not list it.
func (rd *Reader) MSOntologyVersion() string {
	for _, cv := range rd.meta.cvs {
		if cv.ID == "MS" {
			return cv.Version
		}
	}
	return ""
}

// FileDescription returns the file-level metadata block, nil when absent.
func (rd *Reader) FileDescription() *FileDescription { return rd.meta.fileDesc }

// ParamGroups returns the file's referenceable param group definitions.
func (rd *Reader) ParamGroups() []ReferenceableParamGroup { return rd.meta.groups }

// ParamGroup returns the definition of one referenceable param group, or
// ErrReferenceResolution when the id is not defined.
func (rd *Reader) ParamGroup(id string) (*ReferenceableParamGroup, error) {
	return rd.groups.group(id)
}

// Samples returns the file's sample list.
func (rd *Reader) Samples() []Sample { return rd.meta.samples }

// Software returns the file's software list.
func (rd *Reader) Software() []Software { return rd.meta.softwares }

// ScanSettings returns the file's scan settings list.
func (rd *Reader) ScanSettings() []ScanSettings { return rd.meta.settings }

// InstrumentConfigurations returns the file's instrument configurations.
func (rd *Reader) InstrumentConfigurations() []InstrumentConfiguration {
	return rd.meta.instruments
}

// DataProcessing returns the file's data processing pipelines.
func (rd *Reader) DataProcessing() []DataProcessing { return rd.meta.processings }

// Run returns the attributes of the file's run element.
func (rd *Reader) Run() *Run { return &rd.meta.run }
