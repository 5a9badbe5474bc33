package mzml

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/html/charset"
)

// indexEntry locates one record in the byte stream. ordinal is the file's
// own index attribute when known (scan-built entries), -1 otherwise;
// length is -1 when only the record's own closing tag bounds it.
type indexEntry struct {
	id      string
	ordinal int
	offset  int64
	length  int64
}

// offsetIndex maps record identity to byte ranges: by the Nth entry
// encountered and by id, over one backing slice of entries. Built once,
// immutable afterwards.
type offsetIndex struct {
	entries  []indexEntry
	byID     map[string]int
	fromScan bool // recovered by scanning rather than read from the file's own index
}

func newOffsetIndex(entries []indexEntry, fromScan bool) *offsetIndex {
	x := &offsetIndex{entries: entries, byID: make(map[string]int, len(entries)), fromScan: fromScan}
	for i := range entries {
		x.byID[entries[i].id] = i
	}
	return x
}

func (x *offsetIndex) size() int { return len(x.entries) }

func (x *offsetIndex) byPosition(i int) (*indexEntry, error) {
	if i < 0 || i >= len(x.entries) {
		return nil, errors.Wrapf(ErrOutOfRange, "position %d of %d", i, len(x.entries))
	}
	return &x.entries[i], nil
}

func (x *offsetIndex) lookupID(id string) (*indexEntry, error) {
	i, ok := x.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %q", id)
	}
	return &x.entries[i], nil
}

func (x *offsetIndex) ids() []string {
	ids := make([]string, len(x.entries))
	for i := range x.entries {
		ids[i] = x.entries[i].id
	}
	return ids
}

// setLengths bounds each entry by the next sibling's start offset. The
// last entry of a section stays unbounded and is terminated by its own
// closing tag instead.
func setLengths(entries []indexEntry) {
	for i := range entries {
		entries[i].length = -1
		if i+1 < len(entries) {
			if n := entries[i+1].offset - entries[i].offset; n > 0 {
				entries[i].length = n
			}
		}
	}
}

var indexListOffsetRE = regexp.MustCompile(`<indexListOffset>\s*([0-9]+)\s*</indexListOffset>`)

// findIndexListOffset searches the last 10 KiB of the stream for the
// trailing indexListOffset element.
func findIndexListOffset(s *byteStream) (int64, bool) {
	const tailLen = 10 * 1024
	start := s.size - tailLen
	if start < 0 {
		start = 0
	}
	tail := make([]byte, s.size-start)
	if _, err := s.ra.ReadAt(tail, start); err != nil && err != io.EOF {
		return 0, false
	}
	m := indexListOffsetRE.FindSubmatch(tail)
	if m == nil {
		return 0, false
	}
	off, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil || off <= 0 || off >= s.size {
		return 0, false
	}
	return off, true
}

type xmlOffset struct {
	IDRef string `xml:"idRef,attr"`
	Value string `xml:",chardata"`
}

type xmlIndex struct {
	Name    string      `xml:"name,attr"`
	Offsets []xmlOffset `xml:"offset"`
}

type xmlIndexList struct {
	Indexes []xmlIndex `xml:"index"`
}

// parseEmbeddedIndex reads the indexList section starting at off and
// builds one offsetIndex per record kind. The embedded index is an
// optimization hint, never ground truth, so every structural oddity is a
// reason to discard it and scan instead.
func parseEmbeddedIndex(s *byteStream, off int64) (spec, chrom *offsetIndex, err error) {
	d := xml.NewDecoder(s.section(off, -1))
	d.CharsetReader = charset.NewReaderLabel

	var list xmlIndexList
	for {
		t, err := d.Token()
		if err != nil {
			return nil, nil, errors.Wrapf(ErrMalformedIndex, "no indexList at offset %d: %v", off, err)
		}
		if se, ok := t.(xml.StartElement); ok {
			if se.Name.Local != "indexList" {
				return nil, nil, errors.Wrapf(ErrMalformedIndex, "unexpected element %q at offset %d", se.Name.Local, off)
			}
			if err := d.DecodeElement(&list, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedIndex, "decode indexList: %v", err)
			}
			break
		}
	}

	for _, idx := range list.Indexes {
		entries := make([]indexEntry, 0, len(idx.Offsets))
		seen := make(map[string]bool, len(idx.Offsets))
		for _, o := range idx.Offsets {
			v, err := strconv.ParseInt(o.Value, 10, 64)
			if err != nil || v < 0 || v >= s.size {
				return nil, nil, errors.Wrapf(ErrMalformedIndex, "bad offset %q for id %q", o.Value, o.IDRef)
			}
			if seen[o.IDRef] {
				return nil, nil, errors.Wrapf(ErrMalformedIndex, "duplicate id %q in index", o.IDRef)
			}
			seen[o.IDRef] = true
			entries = append(entries, indexEntry{id: o.IDRef, ordinal: -1, offset: v})
		}
		setLengths(entries)
		switch idx.Name {
		case "spectrum":
			spec = newOffsetIndex(entries, false)
		case "chromatogram":
			chrom = newOffsetIndex(entries, false)
		}
	}
	if spec == nil {
		spec = newOffsetIndex(nil, false)
	}
	if chrom == nil {
		chrom = newOffsetIndex(nil, false)
	}
	return spec, chrom, nil
}

// validateIndex probes a sample of entries and confirms each offset points
// at a start-of-record tag carrying the claimed id.
func validateIndex(s *byteStream, x *offsetIndex, tag string, probes int) error {
	if probes <= 0 || x.size() == 0 {
		return nil
	}
	sample := []int{0}
	if n := x.size(); n > 1 {
		sample = append(sample, n-1)
		if n > 2 && probes > 2 {
			sample = append(sample, n/2)
		}
	}
	for _, i := range sample {
		ent := &x.entries[i]
		n := int64(512)
		if ent.offset+n > s.size {
			n = s.size - ent.offset
		}
		chunk := make([]byte, n)
		if _, err := s.ra.ReadAt(chunk, ent.offset); err != nil && err != io.EOF {
			return errors.Wrapf(ErrMalformedIndex, "probe offset %d: %v", ent.offset, err)
		}
		probe := bytes.TrimLeft(chunk, " \t\r\n")
		if !bytes.HasPrefix(probe, []byte("<"+tag)) {
			return errors.Wrapf(ErrMalformedIndex, "offset %d for id %q does not start a %s", ent.offset, ent.id, tag)
		}
		if !bytes.Contains(probe, []byte(` id="`+ent.id+`"`)) {
			return errors.Wrapf(ErrMalformedIndex, "offset %d does not carry id %q", ent.offset, ent.id)
		}
	}
	return nil
}

var (
	recordTagRE = regexp.MustCompile(`<(spectrum|chromatogram)(\s[^>]*)>`)
	idAttrRE    = regexp.MustCompile(`\sid="([^"]*)"`)
	ordinalRE   = regexp.MustCompile(`\sindex="([0-9]+)"`)
	listCountRE = regexp.MustCompile(`<(spectrumList|chromatogramList)\s[^>]*count="([0-9]+)"`)
)

// recordScanner walks the stream in file order, reporting each spectrum or
// chromatogram start tag with its id, ordinal and byte offset. It reads
// fixed-size chunks with a lookback window so tags split across chunk
// boundaries are still seen exactly once.
type recordScanner struct {
	s *byteStream

	pos     int64 // next byte to read from the stream
	buf     []byte
	lastOff int64 // offset of the most recently reported tag

	pending []scannedTag

	specCount  int // declared spectrumList count, -1 when unseen
	chromCount int
}

type scannedTag struct {
	kind    string // "spectrum" or "chromatogram"
	id      string
	ordinal int
	offset  int64
}

const (
	scanChunkSize = 64 * 1024
	scanLookback  = 4 * 1024
)

func newRecordScanner(s *byteStream) *recordScanner {
	return &recordScanner{s: s, lastOff: -1, specCount: -1, chromCount: -1}
}

// next returns the next record start tag in file order, or io.EOF.
func (sc *recordScanner) next() (scannedTag, error) {
	for len(sc.pending) == 0 {
		if err := sc.fill(); err != nil {
			return scannedTag{}, err
		}
	}
	t := sc.pending[0]
	sc.pending = sc.pending[1:]
	sc.lastOff = t.offset
	return t, nil
}

func (sc *recordScanner) fill() error {
	if sc.pos >= sc.s.size {
		return io.EOF
	}
	// Carry the tail of the previous window so a tag straddling the chunk
	// boundary is completed here.
	var carry []byte
	if len(sc.buf) > 0 {
		lb := scanLookback
		if lb > len(sc.buf) {
			lb = len(sc.buf)
		}
		carry = sc.buf[len(sc.buf)-lb:]
	}
	n := int64(scanChunkSize)
	if sc.pos+n > sc.s.size {
		n = sc.s.size - sc.pos
	}
	chunk := make([]byte, n)
	if _, err := sc.s.ra.ReadAt(chunk, sc.pos); err != nil && err != io.EOF {
		return err
	}
	base := sc.pos - int64(len(carry))
	window := append(append([]byte(nil), carry...), chunk...)
	sc.pos += n
	sc.buf = window

	for _, m := range recordTagRE.FindAllSubmatchIndex(window, -1) {
		off := base + int64(m[0])
		if off <= sc.lastOff {
			continue // already reported from the previous window
		}
		tag := window[m[0]:m[1]]
		st := scannedTag{kind: string(window[m[2]:m[3]]), ordinal: -1, offset: off}
		if im := idAttrRE.FindSubmatch(tag); im != nil {
			st.id = string(im[1])
		}
		if om := ordinalRE.FindSubmatch(tag); om != nil {
			if v, err := strconv.Atoi(string(om[1])); err == nil {
				st.ordinal = v
			}
		}
		sc.pending = append(sc.pending, st)
	}
	for _, m := range listCountRE.FindAllSubmatchIndex(window, -1) {
		if base+int64(m[0]) <= sc.lastOff {
			continue
		}
		if v, err := strconv.Atoi(string(window[m[4]:m[5]])); err == nil {
			if string(window[m[2]:m[3]]) == "spectrumList" {
				sc.specCount = v
			} else {
				sc.chromCount = v
			}
		}
	}
	return nil
}

// scanIndexes is the correctness fallback: a single forward scan locating
// record boundaries by their structural markers. For a well-formed file it
// must produce the same entries a trustworthy embedded index would.
func scanIndexes(s *byteStream, lg Logger) (spec, chrom *offsetIndex, err error) {
	sc := newRecordScanner(s)
	var specEntries, chromEntries []indexEntry
	specByID := make(map[string]int)
	chromByID := make(map[string]int)

	for {
		t, err := sc.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		entries, byID := &specEntries, specByID
		if t.kind == "chromatogram" {
			entries, byID = &chromEntries, chromByID
		}
		ent := indexEntry{id: t.id, ordinal: t.ordinal, offset: t.offset}
		if prev, ok := byID[t.id]; ok {
			// Degenerate file: the format does not define duplicate ids.
			// Last occurrence wins, keeping the first occurrence's position.
			lg.Infof("mzml: duplicate %s id %q at offsets %d and %d, keeping the later one",
				t.kind, t.id, (*entries)[prev].offset, t.offset)
			(*entries)[prev] = ent
			continue
		}
		byID[t.id] = len(*entries)
		*entries = append(*entries, ent)
	}

	if sc.specCount >= 0 && sc.specCount != len(specEntries) {
		lg.Infof("mzml: spectrumList declares %d entries, scan found %d; file may be truncated",
			sc.specCount, len(specEntries))
	}
	if sc.chromCount >= 0 && sc.chromCount != len(chromEntries) {
		lg.Infof("mzml: chromatogramList declares %d entries, scan found %d; file may be truncated",
			sc.chromCount, len(chromEntries))
	}

	setLengths(specEntries)
	setLengths(chromEntries)
	return newOffsetIndex(specEntries, true), newOffsetIndex(chromEntries, true), nil
}

// buildIndexes consults the file's embedded index first and falls back to
// scanning when it is absent, unreadable or fails offset validation.
// Index-building failures are recovered here; they surface only when the
// scan fallback itself fails.
func buildIndexes(s *byteStream, opts *Options, lg Logger) (spec, chrom *offsetIndex, err error) {
	if !opts.ForceScan {
		if off, ok := findIndexListOffset(s); ok {
			sp, ch, err := parseEmbeddedIndex(s, off)
			if err == nil {
				err = validateIndex(s, sp, "spectrum", opts.indexProbes())
			}
			if err == nil {
				err = validateIndex(s, ch, "chromatogram", opts.indexProbes())
			}
			if err == nil {
				return sp, ch, nil
			}
			lg.Infof("mzml: embedded index unusable, rebuilding by scan: %v", err)
		}
	}
	return scanIndexes(s, lg)
}
