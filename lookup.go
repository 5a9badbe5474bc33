package mzml

import (
	"io"

	"github.com/cockroachdb/errors"
)

// SpectrumList is the random-access view over the file's spectra. Every
// lookup parses the record afresh from the stream; callers that need a
// record repeatedly should keep the returned value.
type SpectrumList struct {
	rd  *Reader
	idx *offsetIndex
}

// Len returns the number of indexed spectra. It is a count of index
// entries, not a scan.
func (l *SpectrumList) Len() int { return l.idx.size() }

// IDs returns all spectrum ids in file order.
func (l *SpectrumList) IDs() []string { return l.idx.ids() }

// Get returns the spectrum at position i (the i-th record in file order,
// unrelated to the file's own index attribute). Negative or out-of-range
// positions fail with ErrOutOfRange.
func (l *SpectrumList) Get(i int) (*Spectrum, error) {
	ent, err := l.idx.byPosition(i)
	if err != nil {
		return nil, err
	}
	return l.rd.parseSpectrum(ent)
}

// GetByID returns the spectrum with exactly the given id, or ErrNotFound.
func (l *SpectrumList) GetByID(id string) (*Spectrum, error) {
	ent, err := l.idx.lookupID(id)
	if err != nil {
		return nil, err
	}
	return l.rd.parseSpectrum(ent)
}

// Slice returns the spectra at positions [start, stop) taking every
// step-th one. Out-of-range bounds are clamped, matching the usual
// sequence-slicing convention; a step below 1 is an error.
func (l *SpectrumList) Slice(start, stop, step int) ([]*Spectrum, error) {
	positions, err := slicePositions(start, stop, step, l.Len())
	if err != nil {
		return nil, err
	}
	out := make([]*Spectrum, 0, len(positions))
	for _, i := range positions {
		s, err := l.Get(i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Iter walks the stream structurally in file order. It never consults the
// offset index, so it stays correct even when the index is degenerate or
// inconsistent with the actual file content. Each call starts a fresh pass.
func (l *SpectrumList) Iter() *SpectrumIter {
	return &SpectrumIter{rd: l.rd, sc: newRecordScanner(l.rd.stream)}
}

// SpectrumIter iterates spectra in file order.
//
//	it := spectra.Iter()
//	for it.Next() {
//		s := it.Spectrum()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type SpectrumIter struct {
	rd   *Reader
	sc   *recordScanner
	cur  *Spectrum
	err  error
	done bool
}

// Next advances to the next spectrum, reporting false at the end of the
// stream or on error.
func (it *SpectrumIter) Next() bool {
	if it.done {
		return false
	}
	for {
		t, err := it.sc.next()
		if err == io.EOF {
			it.done = true
			return false
		}
		if err != nil {
			it.err = err
			it.done = true
			return false
		}
		if t.kind != "spectrum" {
			continue
		}
		ent := indexEntry{id: t.id, ordinal: t.ordinal, offset: t.offset, length: -1}
		s, err := it.rd.parseSpectrum(&ent)
		if err != nil {
			it.err = err
			it.done = true
			return false
		}
		it.cur = s
		return true
	}
}

// Spectrum returns the record the iterator is positioned at.
func (it *SpectrumIter) Spectrum() *Spectrum { return it.cur }

// Err returns the error that terminated iteration, if any.
func (it *SpectrumIter) Err() error { return it.err }

// ChromatogramList is the random-access view over the file's
// chromatograms.
type ChromatogramList struct {
	rd  *Reader
	idx *offsetIndex
}

// Len returns the number of indexed chromatograms.
func (l *ChromatogramList) Len() int { return l.idx.size() }

// IDs returns all chromatogram ids in file order.
func (l *ChromatogramList) IDs() []string { return l.idx.ids() }

// Get returns the chromatogram at position i.
func (l *ChromatogramList) Get(i int) (*Chromatogram, error) {
	ent, err := l.idx.byPosition(i)
	if err != nil {
		return nil, err
	}
	return l.rd.parseChromatogram(ent)
}

// GetByID returns the chromatogram with exactly the given id.
func (l *ChromatogramList) GetByID(id string) (*Chromatogram, error) {
	ent, err := l.idx.lookupID(id)
	if err != nil {
		return nil, err
	}
	return l.rd.parseChromatogram(ent)
}

// TIC returns the total ion current chromatogram, conventionally stored
// under the id "TIC".
func (l *ChromatogramList) TIC() (*Chromatogram, error) {
	return l.GetByID("TIC")
}

// Slice returns the chromatograms at positions [start, stop) taking every
// step-th one, with out-of-range bounds clamped.
func (l *ChromatogramList) Slice(start, stop, step int) ([]*Chromatogram, error) {
	positions, err := slicePositions(start, stop, step, l.Len())
	if err != nil {
		return nil, err
	}
	out := make([]*Chromatogram, 0, len(positions))
	for _, i := range positions {
		c, err := l.Get(i)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Iter walks the stream structurally in file order without consulting the
// offset index. Each call starts a fresh pass.
func (l *ChromatogramList) Iter() *ChromatogramIter {
	return &ChromatogramIter{rd: l.rd, sc: newRecordScanner(l.rd.stream)}
}

// ChromatogramIter iterates chromatograms in file order.
type ChromatogramIter struct {
	rd   *Reader
	sc   *recordScanner
	cur  *Chromatogram
	err  error
	done bool
}

// Next advances to the next chromatogram, reporting false at the end of
// the stream or on error.
func (it *ChromatogramIter) Next() bool {
	if it.done {
		return false
	}
	for {
		t, err := it.sc.next()
		if err == io.EOF {
			it.done = true
			return false
		}
		if err != nil {
			it.err = err
			it.done = true
			return false
		}
		if t.kind != "chromatogram" {
			continue
		}
		ent := indexEntry{id: t.id, ordinal: t.ordinal, offset: t.offset, length: -1}
		c, err := it.rd.parseChromatogram(&ent)
		if err != nil {
			it.err = err
			it.done = true
			return false
		}
		it.cur = c
		return true
	}
}

// Chromatogram returns the record the iterator is positioned at.
func (it *ChromatogramIter) Chromatogram() *Chromatogram { return it.cur }

// Err returns the error that terminated iteration, if any.
func (it *ChromatogramIter) Err() error { return it.err }

// slicePositions expands half-open slice bounds over a collection of n
// records, clamping out-of-range bounds instead of failing.
func slicePositions(start, stop, step, n int) ([]int, error) {
	if step < 1 {
		return nil, errors.Wrapf(ErrOutOfRange, "step %d", step)
	}
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	var out []int
	for i := start; i < stop; i += step {
		out = append(out, i)
	}
	return out, nil
}
