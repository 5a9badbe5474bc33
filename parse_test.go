package mzml

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func fragmentReader() *Reader {
	return &Reader{groups: groupTable{}}
}

func TestParseTruncatedSpectrumFragment(t *testing.T) {
	rd := fragmentReader()
	frag := []byte(`<spectrum index="0" id="scan=1"><cvParam cvRef="MS" accession="MS:1000511"`)
	_, err := rd.parseSpectrumFragment(frag, 0)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestParseWrongRootElement(t *testing.T) {
	rd := fragmentReader()
	frag := []byte(`<chromatogram index="0" id="TIC"></chromatogram>`)
	_, err := rd.parseSpectrumFragment(frag, 0)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestParseUnterminatedBinary(t *testing.T) {
	rd := fragmentReader()
	frag := []byte(`<spectrum index="0" id="scan=1"><binaryDataArrayList count="1">` +
		`<binaryDataArray encodedLength="4"><binary>QUJD`)
	_, err := rd.parseSpectrumFragment(frag, 0)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestParseSpectrumUnknownElementsSkipped(t *testing.T) {
	rd := fragmentReader()
	frag := []byte(`<spectrum index="3" id="scan=4" defaultArrayLength="0">` +
		`<somethingNew><nested attr="1"/></somethingNew>` +
		`<cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>` +
		`</spectrum>`)
	s, err := rd.parseSpectrumFragment(frag, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.ID != "scan=4" || s.Ordinal != 3 || s.MSLevel() != 1 {
		t.Fatalf("spectrum = %+v", s)
	}
}

func TestParseBinaryArrayDefaultsToRecordLength(t *testing.T) {
	rd := fragmentReader()
	frag := []byte(`<spectrum index="0" id="scan=1" defaultArrayLength="3">` +
		`<binaryDataArrayList count="2">` +
		mzArray64([]float64{1, 2, 3}) +
		`<binaryDataArray encodedLength="0" arrayLength="0">` +
		`<cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>` +
		`<cvParam cvRef="MS" accession="MS:1000576" name="no compression"/>` +
		`<binary></binary></binaryDataArray>` +
		`</binaryDataArrayList></spectrum>`)
	s, err := rd.parseSpectrumFragment(frag, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.BinaryArrays) != 2 {
		t.Fatalf("arrays = %d", len(s.BinaryArrays))
	}
	// The first array inherits the record's defaultArrayLength, the second
	// declares its own.
	if s.BinaryArrays[0].ArrayLength != 3 {
		t.Fatalf("ArrayLength = %d, want 3", s.BinaryArrays[0].ArrayLength)
	}
	if s.BinaryArrays[1].ArrayLength != 0 {
		t.Fatalf("ArrayLength = %d, want 0", s.BinaryArrays[1].ArrayLength)
	}
	if s.BinaryArrays[1].Role != RoleOther {
		t.Fatalf("Role = %v, want RoleOther", s.BinaryArrays[1].Role)
	}
}

func TestResolveCV(t *testing.T) {
	term := ResolveCV("MS:1000514")
	if term.Role != RoleMz || term.Name != "m/z array" {
		t.Fatalf("term = %+v", term)
	}
	term = ResolveCV("MS:1000523")
	if term.ValueType != ValueTypeFloat64 {
		t.Fatalf("term = %+v", term)
	}
	// Unknown accessions resolve, they do not fail.
	term = ResolveCV("MS:9999999")
	if term.Role != RoleOther || term.Accession != "MS:9999999" || term.Name != "" {
		t.Fatalf("term = %+v", term)
	}
}

func TestUnknownArrayRoleKeptVerbatim(t *testing.T) {
	arr := binaryArrayXML(b64(enc64([]float64{1})), -1,
		[2]string{"MS:1000523", "64-bit float"},
		[2]string{"MS:1000576", "no compression"},
		[2]string{"MS:9999999", "experimental array"})
	spec := rec{id: "scan=1", xml: `<spectrum index="0" id="scan=1" defaultArrayLength="1">
<binaryDataArrayList count="1">
` + arr + `</binaryDataArrayList>
</spectrum>`}
	doc := buildDoc(docOpts{spectra: []rec{spec}})
	rd := openDoc(t, doc, nil)

	s, err := rd.Spectra().Get(0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a := s.BinaryArrays[0]
	if a.Role != RoleOther {
		t.Fatalf("Role = %v", a.Role)
	}
	// The raw accession stays readable on the params even though no role
	// matched.
	if cvParam(a.CVParams, "MS:9999999") == nil {
		t.Fatal("unknown accession dropped from params")
	}
	vals, err := a.Decode()
	if err != nil || len(vals) != 1 {
		t.Fatalf("Decode = %v, %v", vals, err)
	}
}
