package mzml

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/html/charset"
)

// XML mirror structs for the nested blocks of a record. Param-bearing
// blocks share xmlParamGroup so group references can be expanded after
// decoding.

type xmlParamGroup struct {
	Refs    []ParamGroupRef `xml:"referenceableParamGroupRef"`
	CvPar   []CVParam       `xml:"cvParam"`
	UserPar []UserParam     `xml:"userParam"`
}

type xmlScanList struct {
	Count int `xml:"count,attr"`
	xmlParamGroup
	Scan []xmlScan `xml:"scan"`
}

type xmlScan struct {
	InstrConfRef string `xml:"instrumentConfigurationRef,attr"`
	xmlParamGroup
	ScanWindowList struct {
		Count      int             `xml:"count,attr"`
		ScanWindow []xmlParamGroup `xml:"scanWindow"`
	} `xml:"scanWindowList"`
}

type xmlPrecursorList struct {
	Count     int            `xml:"count,attr"`
	Precursor []xmlPrecursor `xml:"precursor"`
}

type xmlPrecursor struct {
	SpectrumRef        string         `xml:"spectrumRef,attr"`
	SourceFileRef      string         `xml:"sourceFileRef,attr"`
	ExternalSpectrumID string         `xml:"externalSpectrumID,attr"`
	IsolationWindow    *xmlParamGroup `xml:"isolationWindow"`
	SelectedIonList    struct {
		Count       int             `xml:"count,attr"`
		SelectedIon []xmlParamGroup `xml:"selectedIon"`
	} `xml:"selectedIonList"`
	Activation *xmlParamGroup `xml:"activation"`
}

type xmlProductList struct {
	Count   int          `xml:"count,attr"`
	Product []xmlProduct `xml:"product"`
}

type xmlProduct struct {
	IsolationWindow *xmlParamGroup `xml:"isolationWindow"`
}

// parseSpectrum materializes the spectrum stored at ent. Each call parses
// the fragment afresh; nothing is cached.
func (rd *Reader) parseSpectrum(ent *indexEntry) (*Spectrum, error) {
	frag, err := readFragment(rd.stream, ent.offset, ent.length, []byte("</spectrum>"))
	if err != nil {
		return nil, err
	}
	return rd.parseSpectrumFragment(frag, ent.offset)
}

func (rd *Reader) parseSpectrumFragment(frag []byte, base int64) (*Spectrum, error) {
	d := newFragmentDecoder(frag)
	se, err := firstStart(d, "spectrum")
	if err != nil {
		return nil, err
	}

	s := &Spectrum{Ordinal: -1, DefaultArrayLength: -1}
	for _, a := range se.Attr {
		switch a.Name.Local {
		case "id":
			s.ID = a.Value
		case "index":
			if v, err := strconv.Atoi(a.Value); err == nil {
				s.Ordinal = v
			}
		case "defaultArrayLength":
			if v, err := strconv.Atoi(a.Value); err == nil {
				s.DefaultArrayLength = v
			}
		case "dataProcessingRef":
			s.DataProcessingRef = a.Value
		case "sourceFileRef":
			s.SourceFileRef = a.Value
		case "spotID":
			s.SpotID = a.Value
		}
	}

	var refs []ParamGroupRef
loop:
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "spectrum %q: %v", s.ID, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "referenceableParamGroupRef":
				var r ParamGroupRef
				if err := d.DecodeElement(&r, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "spectrum %q: %v", s.ID, err)
				}
				refs = append(refs, r)
			case "cvParam":
				var p CVParam
				if err := d.DecodeElement(&p, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "spectrum %q: %v", s.ID, err)
				}
				s.CVParams = append(s.CVParams, p)
			case "userParam":
				var p UserParam
				if err := d.DecodeElement(&p, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "spectrum %q: %v", s.ID, err)
				}
				s.UserParams = append(s.UserParams, p)
			case "scanList":
				var sl xmlScanList
				if err := d.DecodeElement(&sl, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "spectrum %q: %v", s.ID, err)
				}
				if s.Scans, err = rd.convertScans(&sl); err != nil {
					return nil, err
				}
			case "precursorList":
				var pl xmlPrecursorList
				if err := d.DecodeElement(&pl, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "spectrum %q: %v", s.ID, err)
				}
				for i := range pl.Precursor {
					p, err := rd.convertPrecursor(&pl.Precursor[i])
					if err != nil {
						return nil, err
					}
					s.Precursors = append(s.Precursors, *p)
				}
			case "productList":
				var pl xmlProductList
				if err := d.DecodeElement(&pl, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "spectrum %q: %v", s.ID, err)
				}
				for i := range pl.Product {
					p, err := rd.convertProduct(&pl.Product[i])
					if err != nil {
						return nil, err
					}
					s.Products = append(s.Products, *p)
				}
			case "binaryDataArrayList":
				if s.BinaryArrays, err = rd.parseBinaryArrays(d, frag, base, s.DefaultArrayLength, s.ID); err != nil {
					return nil, err
				}
			default:
				if err := d.Skip(); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "spectrum %q: %v", s.ID, err)
				}
			}
		case xml.EndElement:
			break loop
		}
	}

	if s.CVParams, s.UserParams, err = rd.groups.resolveParams(refs, s.CVParams, s.UserParams); err != nil {
		return nil, errors.Wrapf(err, "spectrum %q", s.ID)
	}
	return s, nil
}

// parseChromatogram materializes the chromatogram stored at ent.
func (rd *Reader) parseChromatogram(ent *indexEntry) (*Chromatogram, error) {
	frag, err := readFragment(rd.stream, ent.offset, ent.length, []byte("</chromatogram>"))
	if err != nil {
		return nil, err
	}
	return rd.parseChromatogramFragment(frag, ent.offset)
}

func (rd *Reader) parseChromatogramFragment(frag []byte, base int64) (*Chromatogram, error) {
	d := newFragmentDecoder(frag)
	se, err := firstStart(d, "chromatogram")
	if err != nil {
		return nil, err
	}

	c := &Chromatogram{Ordinal: -1, DefaultArrayLength: -1}
	for _, a := range se.Attr {
		switch a.Name.Local {
		case "id":
			c.ID = a.Value
		case "index":
			if v, err := strconv.Atoi(a.Value); err == nil {
				c.Ordinal = v
			}
		case "defaultArrayLength":
			if v, err := strconv.Atoi(a.Value); err == nil {
				c.DefaultArrayLength = v
			}
		case "dataProcessingRef":
			c.DataProcessingRef = a.Value
		}
	}

	var refs []ParamGroupRef
loop:
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "chromatogram %q: %v", c.ID, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "referenceableParamGroupRef":
				var r ParamGroupRef
				if err := d.DecodeElement(&r, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "chromatogram %q: %v", c.ID, err)
				}
				refs = append(refs, r)
			case "cvParam":
				var p CVParam
				if err := d.DecodeElement(&p, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "chromatogram %q: %v", c.ID, err)
				}
				c.CVParams = append(c.CVParams, p)
			case "userParam":
				var p UserParam
				if err := d.DecodeElement(&p, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "chromatogram %q: %v", c.ID, err)
				}
				c.UserParams = append(c.UserParams, p)
			case "precursor":
				var xp xmlPrecursor
				if err := d.DecodeElement(&xp, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "chromatogram %q: %v", c.ID, err)
				}
				if c.Precursor, err = rd.convertPrecursor(&xp); err != nil {
					return nil, err
				}
			case "product":
				var xp xmlProduct
				if err := d.DecodeElement(&xp, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "chromatogram %q: %v", c.ID, err)
				}
				if c.Product, err = rd.convertProduct(&xp); err != nil {
					return nil, err
				}
			case "binaryDataArrayList":
				if c.BinaryArrays, err = rd.parseBinaryArrays(d, frag, base, c.DefaultArrayLength, c.ID); err != nil {
					return nil, err
				}
			default:
				if err := d.Skip(); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "chromatogram %q: %v", c.ID, err)
				}
			}
		case xml.EndElement:
			break loop
		}
	}

	if c.CVParams, c.UserParams, err = rd.groups.resolveParams(refs, c.CVParams, c.UserParams); err != nil {
		return nil, errors.Wrapf(err, "chromatogram %q", c.ID)
	}
	return c, nil
}

// parseBinaryArrays walks a binaryDataArrayList, building one descriptor
// per array. The base64 payload text is never touched; only its byte
// sub-range within the stream is captured, together with the CV params
// the decoder needs.
func (rd *Reader) parseBinaryArrays(d *xml.Decoder, frag []byte, base int64, defaultLen int, recID string) ([]BinaryDataArray, error) {
	var out []BinaryDataArray
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "binaryDataArray" {
				if err := d.Skip(); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
				}
				continue
			}
			bda, err := rd.parseBinaryArray(d, &t, frag, base, defaultLen, recID)
			if err != nil {
				return nil, err
			}
			out = append(out, *bda)
		case xml.EndElement:
			return out, nil
		}
	}
}

func (rd *Reader) parseBinaryArray(d *xml.Decoder, se *xml.StartElement, frag []byte, base int64, defaultLen int, recID string) (*BinaryDataArray, error) {
	bda := &BinaryDataArray{ArrayLength: defaultLen, rd: rd}
	for _, a := range se.Attr {
		switch a.Name.Local {
		case "encodedLength":
			if v, err := strconv.Atoi(a.Value); err == nil {
				bda.EncodedLength = v
			}
		case "arrayLength":
			if v, err := strconv.Atoi(a.Value); err == nil {
				bda.ArrayLength = v
			}
		}
	}

	var refs []ParamGroupRef
loop:
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "referenceableParamGroupRef":
				var r ParamGroupRef
				if err := d.DecodeElement(&r, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
				}
				refs = append(refs, r)
			case "cvParam":
				var p CVParam
				if err := d.DecodeElement(&p, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
				}
				bda.CVParams = append(bda.CVParams, p)
			case "userParam":
				var p UserParam
				if err := d.DecodeElement(&p, &t); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
				}
				bda.UserParams = append(bda.UserParams, p)
			case "binary":
				if err := rd.captureBinaryRange(d, bda, frag, base, recID); err != nil {
					return nil, err
				}
			default:
				if err := d.Skip(); err != nil {
					return nil, errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
				}
			}
		case xml.EndElement:
			break loop
		}
	}

	var err error
	if bda.CVParams, bda.UserParams, err = rd.groups.resolveParams(refs, bda.CVParams, bda.UserParams); err != nil {
		return nil, errors.Wrapf(err, "record %q", recID)
	}
	for _, p := range bda.CVParams {
		if c, ok := compressionFor(p.Accession); ok {
			bda.Compression = c
		}
		if v, ok := valueTypeFor(p.Accession); ok {
			bda.ValueType = v
		}
		if r := RoleForArray(p.Accession); r != RoleOther && bda.Role == RoleOther {
			bda.Role = r
			bda.RoleAccession = p.Accession
		}
	}
	return bda, nil
}

// captureBinaryRange records the byte range of the base64 text between
// <binary> and </binary>. Base64 text cannot contain '<', so the first
// closing marker after the payload start is the real one.
func (rd *Reader) captureBinaryRange(d *xml.Decoder, bda *BinaryDataArray, frag []byte, base int64, recID string) error {
	relStart := d.InputOffset()
	bda.offset = base + relStart
	tok, err := d.Token()
	if err != nil {
		return errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
	}
	switch tok.(type) {
	case xml.EndElement:
		// empty payload
		return nil
	case xml.CharData:
		end := bytes.Index(frag[relStart:], []byte("</binary>"))
		if end < 0 {
			return errors.Wrapf(ErrMalformedRecord, "record %q: unterminated binary element", recID)
		}
		bda.length = int64(end)
		tok, err = d.Token()
		if err != nil {
			return errors.Wrapf(ErrMalformedRecord, "record %q: %v", recID, err)
		}
		if _, ok := tok.(xml.EndElement); !ok {
			return errors.Wrapf(ErrMalformedRecord, "record %q: unexpected content in binary element", recID)
		}
		return nil
	}
	return errors.Wrapf(ErrMalformedRecord, "record %q: unexpected token in binary element", recID)
}

func (rd *Reader) convertScans(sl *xmlScanList) ([]Scan, error) {
	scans := make([]Scan, 0, len(sl.Scan))
	for i := range sl.Scan {
		xs := &sl.Scan[i]
		cv, user, err := rd.groups.resolveParams(xs.Refs, xs.CvPar, xs.UserPar)
		if err != nil {
			return nil, err
		}
		sc := Scan{InstrumentConfigurationRef: xs.InstrConfRef, CVParams: cv, UserParams: user}
		for j := range xs.ScanWindowList.ScanWindow {
			w := &xs.ScanWindowList.ScanWindow[j]
			wcv, wuser, err := rd.groups.resolveParams(w.Refs, w.CvPar, w.UserPar)
			if err != nil {
				return nil, err
			}
			sc.ScanWindows = append(sc.ScanWindows, ScanWindow{CVParams: wcv, UserParams: wuser})
		}
		scans = append(scans, sc)
	}
	return scans, nil
}

func (rd *Reader) convertParamGroup(g *xmlParamGroup) (*IsolationWindow, error) {
	cv, user, err := rd.groups.resolveParams(g.Refs, g.CvPar, g.UserPar)
	if err != nil {
		return nil, err
	}
	return &IsolationWindow{CVParams: cv, UserParams: user}, nil
}

func (rd *Reader) convertPrecursor(xp *xmlPrecursor) (*Precursor, error) {
	p := &Precursor{
		SpectrumRef:        xp.SpectrumRef,
		SourceFileRef:      xp.SourceFileRef,
		ExternalSpectrumID: xp.ExternalSpectrumID,
	}
	if xp.IsolationWindow != nil {
		w, err := rd.convertParamGroup(xp.IsolationWindow)
		if err != nil {
			return nil, err
		}
		p.IsolationWindow = w
	}
	for i := range xp.SelectedIonList.SelectedIon {
		g := &xp.SelectedIonList.SelectedIon[i]
		cv, user, err := rd.groups.resolveParams(g.Refs, g.CvPar, g.UserPar)
		if err != nil {
			return nil, err
		}
		p.SelectedIons = append(p.SelectedIons, SelectedIon{CVParams: cv, UserParams: user})
	}
	if xp.Activation != nil {
		cv, user, err := rd.groups.resolveParams(xp.Activation.Refs, xp.Activation.CvPar, xp.Activation.UserPar)
		if err != nil {
			return nil, err
		}
		p.Activation = &Activation{CVParams: cv, UserParams: user}
	}
	return p, nil
}

func (rd *Reader) convertProduct(xp *xmlProduct) (*Product, error) {
	p := &Product{}
	if xp.IsolationWindow != nil {
		w, err := rd.convertParamGroup(xp.IsolationWindow)
		if err != nil {
			return nil, err
		}
		p.IsolationWindow = w
	}
	return p, nil
}

func newFragmentDecoder(frag []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(frag))
	d.CharsetReader = charset.NewReaderLabel
	return d
}

// firstStart reads tokens until the fragment's root element and checks it
// is the expected record kind.
func firstStart(d *xml.Decoder, name string) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.StartElement{}, errors.Wrapf(ErrMalformedRecord, "no %s element: %v", name, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != name {
				return xml.StartElement{}, errors.Wrapf(ErrMalformedRecord, "expected %s, found %s", name, se.Name.Local)
			}
			return se, nil
		}
	}
}

// readFragment reads the bytes of one record. With a known length it reads
// exactly that range; otherwise it reads forward until the record's own
// closing marker.
func readFragment(s *byteStream, off, length int64, closeTag []byte) ([]byte, error) {
	if length >= 0 {
		buf := make([]byte, length)
		if _, err := io.ReadFull(s.section(off, length), buf); err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "read %d bytes at offset %d: %v", length, off, err)
		}
		return buf, nil
	}
	const step = 4096
	var buf []byte
	searchFrom := 0
	pos := off
	for {
		n := int64(step)
		if pos+n > s.size {
			n = s.size - pos
		}
		if n <= 0 {
			return nil, errors.Wrapf(ErrMalformedRecord, "no %s before end of stream", closeTag)
		}
		chunk := make([]byte, n)
		if _, err := s.ra.ReadAt(chunk, pos); err != nil && err != io.EOF {
			return nil, errors.Wrapf(ErrMalformedRecord, "read at offset %d: %v", pos, err)
		}
		buf = append(buf, chunk...)
		pos += n
		if idx := bytes.Index(buf[searchFrom:], closeTag); idx >= 0 {
			return buf[:searchFrom+idx+len(closeTag)], nil
		}
		if searchFrom = len(buf) - len(closeTag) + 1; searchFrom < 0 {
			searchFrom = 0
		}
	}
}
