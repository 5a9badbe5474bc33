package mzml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metadataHeader = `<cvList count="2">
<cv id="MS" fullName="Proteomics Standards Initiative Mass Spectrometry Ontology" version="4.1.184" URI="https://raw.githubusercontent.com/HUPO-PSI/psi-ms-CV/master/psi-ms.obo"/>
<cv id="UO" fullName="Unit Ontology" version="09:04:2014" URI="https://raw.githubusercontent.com/bio-ontology-research-group/unit-ontology/master/unit.obo"/>
</cvList>
<fileDescription>
<fileContent>
<cvParam cvRef="MS" accession="MS:1000580" name="MSn spectrum"/>
</fileContent>
<sourceFileList count="1">
<sourceFile id="RAW1" name="sample.raw" location="file:///data">
<cvParam cvRef="MS" accession="MS:1000569" name="SHA-1" value="f2f3d8a7"/>
<cvParam cvRef="MS" accession="MS:1000563" name="Thermo RAW format"/>
</sourceFile>
</sourceFileList>
<contact>
<cvParam cvRef="MS" accession="MS:1000586" name="contact name" value="Lab 3"/>
</contact>
</fileDescription>
<sampleList count="1">
<sample id="S1" name="serum"/>
</sampleList>
<softwareList count="1">
<software id="Xcalibur" version="2.8">
<cvParam cvRef="MS" accession="MS:1000532" name="Xcalibur"/>
</software>
</softwareList>
<instrumentConfigurationList count="1">
<instrumentConfiguration id="IC1">
<cvParam cvRef="MS" accession="MS:1000449" name="LTQ Orbitrap"/>
<componentList count="3">
<source order="1">
<cvParam cvRef="MS" accession="MS:1000398" name="nanoelectrospray"/>
</source>
<analyzer order="2">
<cvParam cvRef="MS" accession="MS:1000484" name="orbitrap"/>
</analyzer>
<detector order="3">
<cvParam cvRef="MS" accession="MS:1000624" name="inductive detector"/>
</detector>
</componentList>
<softwareRef ref="Xcalibur"/>
</instrumentConfiguration>
</instrumentConfigurationList>
<dataProcessingList count="1">
<dataProcessing id="dp1">
<processingMethod order="1" softwareRef="Xcalibur">
<cvParam cvRef="MS" accession="MS:1000544" name="Conversion to mzML"/>
</processingMethod>
</dataProcessing>
</dataProcessingList>
`

func TestHeaderMetadata(t *testing.T) {
	doc := buildDoc(docOpts{header: metadataHeader, spectra: threeSpectra()})
	rd := openDoc(t, doc, nil)

	assert.Equal(t, "1.1.0", rd.Version())
	assert.Equal(t, "4.1.184", rd.MSOntologyVersion())
	require.Len(t, rd.CVs(), 2)
	assert.Equal(t, "UO", rd.CVs()[1].ID)

	fd := rd.FileDescription()
	require.NotNil(t, fd)
	require.Len(t, fd.SourceFiles, 1)
	sf := fd.SourceFiles[0]
	assert.Equal(t, "RAW1", sf.ID)
	assert.Equal(t, "sample.raw", sf.Name)
	assert.Equal(t, "f2f3d8a7", sf.SHA1())
	assert.Empty(t, sf.MD5())
	require.Len(t, fd.Contacts, 1)

	require.Len(t, rd.Samples(), 1)
	assert.Equal(t, "serum", rd.Samples()[0].Name)

	require.Len(t, rd.Software(), 1)
	assert.Equal(t, "2.8", rd.Software()[0].Version)

	require.Len(t, rd.InstrumentConfigurations(), 1)
	ic := rd.InstrumentConfigurations()[0]
	assert.Equal(t, "IC1", ic.ID)
	assert.Equal(t, "Xcalibur", ic.SoftwareRef)
	require.Len(t, ic.Sources, 1)
	require.Len(t, ic.Analyzers, 1)
	require.Len(t, ic.Detectors, 1)
	assert.Equal(t, 2, ic.Analyzers[0].Order)

	require.Len(t, rd.DataProcessing(), 1)
	require.Len(t, rd.DataProcessing()[0].Methods, 1)
	assert.Equal(t, "Xcalibur", rd.DataProcessing()[0].Methods[0].SoftwareRef)

	run := rd.Run()
	assert.Equal(t, "run1", run.ID)
	assert.Equal(t, "IC1", run.DefaultInstrumentConfigurationRef)
	start, err := run.StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), start.UTC())
}

func TestOpenFile(t *testing.T) {
	doc := buildDoc(docOpts{spectra: threeSpectra()})
	path := filepath.Join(t.TempDir(), "test.mzML")
	require.NoError(t, os.WriteFile(path, doc, 0o644))

	rd, err := Open(path, nil)
	require.NoError(t, err)
	defer rd.Close()

	assert.Equal(t, 3, rd.Spectra().Len())
	s, err := rd.Spectra().GetByID("scan=2")
	require.NoError(t, err)
	mz, err := s.MZ()
	require.NoError(t, err)
	assert.Equal(t, []float64{101.5, 202.5}, mz)
}

func TestOpenGzip(t *testing.T) {
	doc := buildDoc(docOpts{spectra: threeSpectra()})
	path := filepath.Join(t.TempDir(), "test.mzML.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write(doc)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	rd, err := Open(path, nil)
	require.NoError(t, err)
	defer rd.Close()

	assert.False(t, rd.IndexFromScan())
	assert.Equal(t, 3, rd.Spectra().Len())
	s, err := rd.Spectra().Get(0)
	require.NoError(t, err)
	assert.Equal(t, "scan=1", s.ID)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.mzML"), nil)
	require.Error(t, err)
}

func TestSpectrumAccessors(t *testing.T) {
	spec := rec{id: "scan=9", xml: `<spectrum index="8" id="scan=9" defaultArrayLength="3">
<cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="2"/>
<cvParam cvRef="MS" accession="MS:1000127" name="centroid spectrum"/>
<cvParam cvRef="MS" accession="MS:1000130" name="negative scan"/>
<scanList count="1">
<scan>
<cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="2.5" unitCvRef="UO" unitAccession="UO:0000031" unitName="minute"/>
<cvParam cvRef="MS" accession="MS:1000927" name="ion injection time" value="40.2" unitCvRef="UO" unitAccession="UO:0000028" unitName="millisecond"/>
</scan>
</scanList>
<precursorList count="1">
<precursor spectrumRef="scan=3">
<isolationWindow>
<cvParam cvRef="MS" accession="MS:1000827" name="isolation window target m/z" value="445.12"/>
<cvParam cvRef="MS" accession="MS:1000828" name="isolation window lower offset" value="1.0"/>
<cvParam cvRef="MS" accession="MS:1000829" name="isolation window upper offset" value="1.0"/>
</isolationWindow>
<selectedIonList count="1">
<selectedIon>
<cvParam cvRef="MS" accession="MS:1000744" name="selected ion m/z" value="445.1200"/>
<cvParam cvRef="MS" accession="MS:1000041" name="charge state" value="2"/>
<cvParam cvRef="MS" accession="MS:1000042" name="peak intensity" value="1.5e6"/>
</selectedIon>
</selectedIonList>
<activation>
<cvParam cvRef="MS" accession="MS:1000422" name="beam-type collision-induced dissociation"/>
<cvParam cvRef="MS" accession="MS:1000045" name="collision energy" value="35.0"/>
</activation>
</precursor>
</precursorList>
<binaryDataArrayList count="2">
` + mzArray64([]float64{100, 200, 300}) + intensArray64([]float64{5, 50, 10}) + `</binaryDataArrayList>
</spectrum>`}
	doc := buildDoc(docOpts{spectra: []rec{spec}})
	rd := openDoc(t, doc, nil)

	s, err := rd.Spectra().Get(0)
	require.NoError(t, err)

	assert.Equal(t, 2, s.MSLevel())
	assert.True(t, s.Centroid())
	assert.False(t, s.Profile())
	assert.Equal(t, PolarityNegative, s.Polarity())

	rt, ok := s.RetentionTime()
	require.True(t, ok)
	assert.InDelta(t, 150.0, rt, 1e-9) // 2.5 minutes

	iit, ok := s.IonInjectionTime()
	require.True(t, ok)
	assert.Equal(t, 40.2, iit)

	// No TIC param in the file, so it is computed from the intensities.
	tic, err := s.TotalIonCurrent()
	require.NoError(t, err)
	assert.Equal(t, 65.0, tic)

	bp, err := s.BasePeak()
	require.NoError(t, err)
	assert.Equal(t, Peak{Mz: 200, Intens: 50}, bp)

	peaks, err := s.Peaks()
	require.NoError(t, err)
	require.Len(t, peaks, 3)
	assert.Equal(t, Peak{Mz: 100, Intens: 5}, peaks[0])

	require.Len(t, s.Precursors, 1)
	p := s.Precursors[0]
	assert.Equal(t, "scan=3", p.SpectrumRef)
	require.NotNil(t, p.IsolationWindow)
	target, ok := p.IsolationWindow.TargetMz()
	require.True(t, ok)
	assert.Equal(t, 445.12, target)
	require.Len(t, p.SelectedIons, 1)
	mz, ok := p.SelectedIons[0].Mz()
	require.True(t, ok)
	assert.Equal(t, 445.12, mz)
	z, ok := p.SelectedIons[0].ChargeState()
	require.True(t, ok)
	assert.Equal(t, 2, z)
	require.NotNil(t, p.Activation)
	ce, ok := p.Activation.CollisionEnergy()
	require.True(t, ok)
	assert.Equal(t, 35.0, ce)
	assert.Equal(t, "beam-type collision-induced dissociation", p.Activation.Type())
}

func TestChromatogramTimeInMinutes(t *testing.T) {
	timeArr := binaryArrayXML(b64(enc64([]float64{0.5, 1.0})), -1,
		[2]string{"MS:1000523", "64-bit float"},
		[2]string{"MS:1000576", "no compression"},
		[2]string{"MS:1000595", "time array"})
	// Tag the time array with a minute unit on its role param.
	timeArr = strings.Replace(timeArr,
		`accession="MS:1000595" name="time array"/>`,
		`accession="MS:1000595" name="time array" unitCvRef="UO" unitAccession="UO:0000031" unitName="minute"/>`, 1)
	xml := `<chromatogram index="0" id="TIC" defaultArrayLength="2">
<cvParam cvRef="MS" accession="MS:1000235" name="total ion current chromatogram"/>
<binaryDataArrayList count="2">
` + timeArr + intensArray64([]float64{7, 8}) + `</binaryDataArrayList>
</chromatogram>`
	doc := buildDoc(docOpts{chroms: []rec{{id: "TIC", xml: xml}}})
	rd := openDoc(t, doc, nil)

	c, err := rd.Chromatograms().TIC()
	require.NoError(t, err)
	times, err := c.Time()
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 60}, times)
}
