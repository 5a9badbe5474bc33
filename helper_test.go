package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"
)

// rec is one pre-rendered record for the synthetic document builder.
type rec struct {
	id  string
	xml string
}

// docOpts steers the synthetic indexed mzML document builder used
// throughout the tests.
type docOpts struct {
	header  string // metadata sections placed inside <mzML>, before <run>
	spectra []rec
	chroms  []rec

	omitIndex      bool  // drop the trailing indexList entirely
	corruptOffsets bool  // shift every index offset so validation fails
	indexSubset    []int // spectrum positions to include in the index; nil means all
	spectrumCount  int   // declared spectrumList count; 0 means the real one
}

// buildDoc renders a complete indexedmzML document with correct byte
// offsets in the trailing index.
func buildDoc(o docOpts) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<indexedmzML xmlns=\"http://psi.hupo.org/ms/mzml\">\n")
	b.WriteString("<mzML xmlns=\"http://psi.hupo.org/ms/mzml\" version=\"1.1.0\">\n")
	b.WriteString(o.header)
	b.WriteString("<run id=\"run1\" defaultInstrumentConfigurationRef=\"IC1\" startTimeStamp=\"2024-05-01T10:30:00Z\">\n")

	count := o.spectrumCount
	if count == 0 {
		count = len(o.spectra)
	}
	fmt.Fprintf(&b, "<spectrumList count=\"%d\" defaultDataProcessingRef=\"dp1\">\n", count)
	specOffs := make([]int64, len(o.spectra))
	for i, r := range o.spectra {
		specOffs[i] = int64(b.Len())
		b.WriteString(r.xml)
		b.WriteString("\n")
	}
	b.WriteString("</spectrumList>\n")

	fmt.Fprintf(&b, "<chromatogramList count=\"%d\" defaultDataProcessingRef=\"dp1\">\n", len(o.chroms))
	chromOffs := make([]int64, len(o.chroms))
	for i, r := range o.chroms {
		chromOffs[i] = int64(b.Len())
		b.WriteString(r.xml)
		b.WriteString("\n")
	}
	b.WriteString("</chromatogramList>\n")
	b.WriteString("</run>\n</mzML>\n")

	if o.omitIndex {
		b.WriteString("</indexedmzML>\n")
		return b.Bytes()
	}

	shift := int64(0)
	if o.corruptOffsets {
		shift = 7
	}
	indexed := o.indexSubset
	if indexed == nil {
		for i := range o.spectra {
			indexed = append(indexed, i)
		}
	}
	indexListOff := int64(b.Len())
	b.WriteString("<indexList count=\"2\">\n<index name=\"spectrum\">\n")
	for _, i := range indexed {
		fmt.Fprintf(&b, "<offset idRef=\"%s\">%d</offset>\n", o.spectra[i].id, specOffs[i]+shift)
	}
	b.WriteString("</index>\n<index name=\"chromatogram\">\n")
	for i, r := range o.chroms {
		fmt.Fprintf(&b, "<offset idRef=\"%s\">%d</offset>\n", r.id, chromOffs[i]+shift)
	}
	b.WriteString("</index>\n</indexList>\n")
	fmt.Fprintf(&b, "<indexListOffset>%d</indexListOffset>\n", indexListOff)
	b.WriteString("</indexedmzML>\n")
	return b.Bytes()
}

func openDoc(t *testing.T, data []byte, opts *Options) *Reader {
	t.Helper()
	rd, err := OpenReader(bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { rd.Close() })
	return rd
}

func enc64(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func enc32(vals []float64) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return b.Bytes()
}

func b64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// binaryArrayXML renders one binaryDataArray with the given accession
// params and payload.
func binaryArrayXML(payload string, arrayLength int, accessions ...[2]string) string {
	var b strings.Builder
	if arrayLength >= 0 {
		fmt.Fprintf(&b, "<binaryDataArray encodedLength=\"%d\" arrayLength=\"%d\">\n", len(payload), arrayLength)
	} else {
		fmt.Fprintf(&b, "<binaryDataArray encodedLength=\"%d\">\n", len(payload))
	}
	for _, a := range accessions {
		fmt.Fprintf(&b, "<cvParam cvRef=\"MS\" accession=\"%s\" name=\"%s\"/>\n", a[0], a[1])
	}
	fmt.Fprintf(&b, "<binary>%s</binary>\n</binaryDataArray>\n", payload)
	return b.String()
}

func mzArray64(vals []float64) string {
	return binaryArrayXML(b64(enc64(vals)), -1,
		[2]string{"MS:1000523", "64-bit float"},
		[2]string{"MS:1000576", "no compression"},
		[2]string{"MS:1000514", "m/z array"})
}

func intensArray64(vals []float64) string {
	return binaryArrayXML(b64(enc64(vals)), -1,
		[2]string{"MS:1000523", "64-bit float"},
		[2]string{"MS:1000576", "no compression"},
		[2]string{"MS:1000515", "intensity array"})
}

// simpleSpectrum renders an MS1 spectrum with uncompressed 64-bit m/z and
// intensity arrays.
func simpleSpectrum(id string, ordinal int, mz, intens []float64) rec {
	var b strings.Builder
	fmt.Fprintf(&b, "<spectrum index=\"%d\" id=\"%s\" defaultArrayLength=\"%d\">\n", ordinal, id, len(mz))
	b.WriteString("<cvParam cvRef=\"MS\" accession=\"MS:1000511\" name=\"ms level\" value=\"1\"/>\n")
	b.WriteString("<cvParam cvRef=\"MS\" accession=\"MS:1000127\" name=\"centroid spectrum\"/>\n")
	fmt.Fprintf(&b, "<binaryDataArrayList count=\"2\">\n%s%s</binaryDataArrayList>\n", mzArray64(mz), intensArray64(intens))
	b.WriteString("</spectrum>")
	return rec{id: id, xml: b.String()}
}

// ticChromatogram renders a TIC chromatogram with time values in seconds.
func ticChromatogram(times, intens []float64) rec {
	timeArr := binaryArrayXML(b64(enc64(times)), -1,
		[2]string{"MS:1000523", "64-bit float"},
		[2]string{"MS:1000576", "no compression"},
		[2]string{"MS:1000595", "time array"})
	intensArr := intensArray64(intens)
	xml := fmt.Sprintf("<chromatogram index=\"0\" id=\"TIC\" defaultArrayLength=\"%d\">\n"+
		"<cvParam cvRef=\"MS\" accession=\"MS:1000235\" name=\"total ion current chromatogram\"/>\n"+
		"<binaryDataArrayList count=\"2\">\n%s%s</binaryDataArrayList>\n</chromatogram>",
		len(times), timeArr, intensArr)
	return rec{id: "TIC", xml: xml}
}

// testLogger collects everything logged through it.
type testLogger struct {
	lines []string
}

func (l *testLogger) Infof(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}
