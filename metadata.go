package mzml

import (
	"encoding/xml"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/html/charset"
)

// CV identifies a controlled vocabulary the file's params draw from.
type CV struct {
	ID       string `xml:"id,attr"`
	FullName string `xml:"fullName,attr"`
	Version  string `xml:"version,attr"`
	URI      string `xml:"URI,attr"`
}

// FileContent describes what kind of data the file holds.
type FileContent struct {
	CVParams   []CVParam
	UserParams []UserParam
}

// SourceFile describes one raw file this file was derived from.
type SourceFile struct {
	ID         string
	Name       string
	Location   string
	CVParams   []CVParam
	UserParams []UserParam
}

// SHA1 returns the file's SHA-1 checksum param value, empty when absent.
func (sf *SourceFile) SHA1() string {
	if p := cvParam(sf.CVParams, cvSHA1); p != nil {
		return p.Value
	}
	return ""
}

// MD5 returns the file's MD5 checksum param value, empty when absent.
func (sf *SourceFile) MD5() string {
	if p := cvParam(sf.CVParams, cvMD5); p != nil {
		return p.Value
	}
	return ""
}

// Contact holds contact info params for the people or organizations
// behind the file.
type Contact struct {
	CVParams   []CVParam
	UserParams []UserParam
}

// FileDescription is the file-level metadata block.
type FileDescription struct {
	FileContent FileContent
	SourceFiles []SourceFile
	Contacts    []Contact
}

// Software describes one program that touched the data.
type Software struct {
	ID         string
	Version    string
	CVParams   []CVParam
	UserParams []UserParam
}

// Sample describes the analyzed sample.
type Sample struct {
	ID         string
	Name       string
	CVParams   []CVParam
	UserParams []UserParam
}

// Target is one inclusion-list entry of a scan settings block.
type Target struct {
	CVParams   []CVParam
	UserParams []UserParam
}

// ScanSettings describes the acquisition settings of an instrument run.
type ScanSettings struct {
	ID             string
	SourceFileRefs []string
	Targets        []Target
	CVParams       []CVParam
	UserParams     []UserParam
}

// Component is one element of an instrument's source-analyzer-detector
// chain, in Order position.
type Component struct {
	Order      int
	CVParams   []CVParam
	UserParams []UserParam
}

// InstrumentConfiguration describes one configuration of the instrument.
type InstrumentConfiguration struct {
	ID          string
	SoftwareRef string
	CVParams    []CVParam
	UserParams  []UserParam
	Sources     []Component
	Analyzers   []Component
	Detectors   []Component
}

// ProcessingMethod is one step of a data processing pipeline.
type ProcessingMethod struct {
	Order       int
	SoftwareRef string
	CVParams    []CVParam
	UserParams  []UserParam
}

// DataProcessing describes one processing pipeline applied to the data.
type DataProcessing struct {
	ID      string
	Methods []ProcessingMethod
}

// Run carries the attributes of the file's single run element.
type Run struct {
	ID                                string
	DefaultInstrumentConfigurationRef string
	DefaultSourceFileRef              string
	SampleRef                         string
	StartTimeStamp                    string
}

// StartTime parses the run's start timestamp. The format mandates an
// xs:dateTime, which RFC 3339 covers.
func (r *Run) StartTime() (time.Time, error) {
	if r.StartTimeStamp == "" {
		return time.Time{}, errors.Wrap(ErrNotFound, "run has no startTimeStamp")
	}
	t, err := time.Parse(time.RFC3339, r.StartTimeStamp)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrMalformedRecord, "run startTimeStamp %q: %v", r.StartTimeStamp, err)
	}
	return t, nil
}

// XML mirrors for the header sections. Param-bearing blocks keep their raw
// group refs; resolution happens after the whole header is read, since the
// group definitions may appear after their first use in document order.

type xmlCVList struct {
	CVs []CV `xml:"cv"`
}

type xmlSourceFile struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Location string `xml:"location,attr"`
	xmlParamGroup
}

type xmlFileDescription struct {
	FileContent    xmlParamGroup `xml:"fileContent"`
	SourceFileList struct {
		SourceFiles []xmlSourceFile `xml:"sourceFile"`
	} `xml:"sourceFileList"`
	Contacts []xmlParamGroup `xml:"contact"`
}

type xmlGroupList struct {
	Groups []struct {
		ID      string      `xml:"id,attr"`
		CvPar   []CVParam   `xml:"cvParam"`
		UserPar []UserParam `xml:"userParam"`
	} `xml:"referenceableParamGroup"`
}

type xmlSample struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
	xmlParamGroup
}

type xmlSampleList struct {
	Samples []xmlSample `xml:"sample"`
}

type xmlSoftware struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
	xmlParamGroup
}

type xmlSoftwareList struct {
	Softwares []xmlSoftware `xml:"software"`
}

type xmlScanSettings struct {
	ID string `xml:"id,attr"`
	xmlParamGroup
	SourceFileRefList struct {
		Refs []struct {
			Ref string `xml:"ref,attr"`
		} `xml:"sourceFileRef"`
	} `xml:"sourceFileRefList"`
	TargetList struct {
		Targets []xmlParamGroup `xml:"target"`
	} `xml:"targetList"`
}

type xmlScanSettingsList struct {
	ScanSettings []xmlScanSettings `xml:"scanSettings"`
}

type xmlComponent struct {
	Order int `xml:"order,attr"`
	xmlParamGroup
}

type xmlInstrumentConfiguration struct {
	ID string `xml:"id,attr"`
	xmlParamGroup
	ComponentList struct {
		Sources   []xmlComponent `xml:"source"`
		Analyzers []xmlComponent `xml:"analyzer"`
		Detectors []xmlComponent `xml:"detector"`
	} `xml:"componentList"`
	SoftwareRef struct {
		Ref string `xml:"ref,attr"`
	} `xml:"softwareRef"`
}

type xmlInstrumentList struct {
	Configurations []xmlInstrumentConfiguration `xml:"instrumentConfiguration"`
}

type xmlProcessingMethod struct {
	Order       int    `xml:"order,attr"`
	SoftwareRef string `xml:"softwareRef,attr"`
	xmlParamGroup
}

type xmlDataProcessing struct {
	ID      string                `xml:"id,attr"`
	Methods []xmlProcessingMethod `xml:"processingMethod"`
}

type xmlDataProcessingList struct {
	Processings []xmlDataProcessing `xml:"dataProcessing"`
}

// fileMetadata is everything the header parse collects, raw. resolve
// turns it into the public metadata views once the group table exists.
type fileMetadata struct {
	version   string
	accession string
	docID     string

	cvs    []CV
	groups []ReferenceableParamGroup
	run    Run

	fileDesc    *FileDescription
	samples     []Sample
	softwares   []Software
	settings    []ScanSettings
	instruments []InstrumentConfiguration
	processings []DataProcessing

	rawFileDesc    *xmlFileDescription
	rawSamples     []xmlSample
	rawSoftwares   []xmlSoftware
	rawSettings    []xmlScanSettings
	rawInstruments []xmlInstrumentConfiguration
	rawProcessings []xmlDataProcessing
}

// readHeader parses the metadata sections preceding the record lists and
// builds the param group table. It stops at the first spectrumList or
// chromatogramList start tag; the records themselves are never touched
// here.
func readHeader(s *byteStream) (*fileMetadata, groupTable, error) {
	meta := &fileMetadata{}
	groups := make(groupTable)

	d := xml.NewDecoder(s.section(0, -1))
	d.CharsetReader = charset.NewReaderLabel

loop:
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(ErrMalformedRecord, "file header: %v", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "indexedmzML":
			// descend
		case "run":
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "id":
					meta.run.ID = a.Value
				case "defaultInstrumentConfigurationRef":
					meta.run.DefaultInstrumentConfigurationRef = a.Value
				case "defaultSourceFileRef":
					meta.run.DefaultSourceFileRef = a.Value
				case "sampleRef":
					meta.run.SampleRef = a.Value
				case "startTimeStamp":
					meta.run.StartTimeStamp = a.Value
				}
			}
		case "mzML":
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "version":
					meta.version = a.Value
				case "accession":
					meta.accession = a.Value
				case "id":
					meta.docID = a.Value
				}
			}
		case "cvList":
			var l xmlCVList
			if err := d.DecodeElement(&l, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "cvList: %v", err)
			}
			meta.cvs = l.CVs
		case "fileDescription":
			var fd xmlFileDescription
			if err := d.DecodeElement(&fd, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "fileDescription: %v", err)
			}
			meta.rawFileDesc = &fd
		case "referenceableParamGroupList":
			var l xmlGroupList
			if err := d.DecodeElement(&l, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "referenceableParamGroupList: %v", err)
			}
			meta.groups = make([]ReferenceableParamGroup, len(l.Groups))
			for i, g := range l.Groups {
				meta.groups[i] = ReferenceableParamGroup{ID: g.ID, CVParams: g.CvPar, UserParams: g.UserPar}
				groups[g.ID] = &meta.groups[i]
			}
		case "sampleList":
			var l xmlSampleList
			if err := d.DecodeElement(&l, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "sampleList: %v", err)
			}
			meta.rawSamples = l.Samples
		case "softwareList":
			var l xmlSoftwareList
			if err := d.DecodeElement(&l, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "softwareList: %v", err)
			}
			meta.rawSoftwares = l.Softwares
		case "scanSettingsList":
			var l xmlScanSettingsList
			if err := d.DecodeElement(&l, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "scanSettingsList: %v", err)
			}
			meta.rawSettings = l.ScanSettings
		case "instrumentConfigurationList":
			var l xmlInstrumentList
			if err := d.DecodeElement(&l, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "instrumentConfigurationList: %v", err)
			}
			meta.rawInstruments = l.Configurations
		case "dataProcessingList":
			var l xmlDataProcessingList
			if err := d.DecodeElement(&l, &se); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "dataProcessingList: %v", err)
			}
			meta.rawProcessings = l.Processings
		case "spectrumList", "chromatogramList":
			break loop
		default:
			if err := d.Skip(); err != nil {
				return nil, nil, errors.Wrapf(ErrMalformedRecord, "file header: %v", err)
			}
		}
	}

	if err := meta.resolve(groups); err != nil {
		return nil, nil, err
	}
	return meta, groups, nil
}

// resolve expands group references in the raw header sections into the
// public metadata views. The raw forms are dropped afterwards.
func (m *fileMetadata) resolve(t groupTable) error {
	expand := func(g *xmlParamGroup) ([]CVParam, []UserParam, error) {
		return t.resolveParams(g.Refs, g.CvPar, g.UserPar)
	}

	if fd := m.rawFileDesc; fd != nil {
		out := &FileDescription{}
		cv, user, err := expand(&fd.FileContent)
		if err != nil {
			return err
		}
		out.FileContent = FileContent{CVParams: cv, UserParams: user}
		for i := range fd.SourceFileList.SourceFiles {
			sf := &fd.SourceFileList.SourceFiles[i]
			cv, user, err := expand(&sf.xmlParamGroup)
			if err != nil {
				return err
			}
			out.SourceFiles = append(out.SourceFiles, SourceFile{
				ID: sf.ID, Name: sf.Name, Location: sf.Location,
				CVParams: cv, UserParams: user,
			})
		}
		for i := range fd.Contacts {
			cv, user, err := expand(&fd.Contacts[i])
			if err != nil {
				return err
			}
			out.Contacts = append(out.Contacts, Contact{CVParams: cv, UserParams: user})
		}
		m.fileDesc = out
	}

	for i := range m.rawSamples {
		raw := &m.rawSamples[i]
		cv, user, err := expand(&raw.xmlParamGroup)
		if err != nil {
			return err
		}
		m.samples = append(m.samples, Sample{ID: raw.ID, Name: raw.Name, CVParams: cv, UserParams: user})
	}

	for i := range m.rawSoftwares {
		raw := &m.rawSoftwares[i]
		cv, user, err := expand(&raw.xmlParamGroup)
		if err != nil {
			return err
		}
		m.softwares = append(m.softwares, Software{ID: raw.ID, Version: raw.Version, CVParams: cv, UserParams: user})
	}

	for i := range m.rawSettings {
		raw := &m.rawSettings[i]
		cv, user, err := expand(&raw.xmlParamGroup)
		if err != nil {
			return err
		}
		ss := ScanSettings{ID: raw.ID, CVParams: cv, UserParams: user}
		for _, r := range raw.SourceFileRefList.Refs {
			ss.SourceFileRefs = append(ss.SourceFileRefs, r.Ref)
		}
		for j := range raw.TargetList.Targets {
			cv, user, err := expand(&raw.TargetList.Targets[j])
			if err != nil {
				return err
			}
			ss.Targets = append(ss.Targets, Target{CVParams: cv, UserParams: user})
		}
		m.settings = append(m.settings, ss)
	}

	components := func(raw []xmlComponent) ([]Component, error) {
		var out []Component
		for i := range raw {
			cv, user, err := expand(&raw[i].xmlParamGroup)
			if err != nil {
				return nil, err
			}
			out = append(out, Component{Order: raw[i].Order, CVParams: cv, UserParams: user})
		}
		return out, nil
	}
	for i := range m.rawInstruments {
		raw := &m.rawInstruments[i]
		cv, user, err := expand(&raw.xmlParamGroup)
		if err != nil {
			return err
		}
		ic := InstrumentConfiguration{
			ID: raw.ID, SoftwareRef: raw.SoftwareRef.Ref,
			CVParams: cv, UserParams: user,
		}
		if ic.Sources, err = components(raw.ComponentList.Sources); err != nil {
			return err
		}
		if ic.Analyzers, err = components(raw.ComponentList.Analyzers); err != nil {
			return err
		}
		if ic.Detectors, err = components(raw.ComponentList.Detectors); err != nil {
			return err
		}
		m.instruments = append(m.instruments, ic)
	}

	for i := range m.rawProcessings {
		raw := &m.rawProcessings[i]
		dp := DataProcessing{ID: raw.ID}
		for j := range raw.Methods {
			rm := &raw.Methods[j]
			cv, user, err := expand(&rm.xmlParamGroup)
			if err != nil {
				return err
			}
			dp.Methods = append(dp.Methods, ProcessingMethod{
				Order: rm.Order, SoftwareRef: rm.SoftwareRef,
				CVParams: cv, UserParams: user,
			})
		}
		m.processings = append(m.processings, dp)
	}

	m.rawFileDesc = nil
	m.rawSamples = nil
	m.rawSoftwares = nil
	m.rawSettings = nil
	m.rawInstruments = nil
	m.rawProcessings = nil
	return nil
}
