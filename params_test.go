package mzml

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

func TestResolveParamsExpandsGroupsFirst(t *testing.T) {
	groups := groupTable{
		"common": &ReferenceableParamGroup{
			ID: "common",
			CVParams: []CVParam{
				{Accession: "MS:1000511", Name: "ms level", Value: "1"},
				{Accession: "MS:1000127", Name: "centroid spectrum"},
			},
			UserParams: []UserParam{{Name: "origin", Value: "group"}},
		},
	}
	local := []CVParam{{Accession: "MS:1000285", Name: "total ion current", Value: "1234"}}
	localUser := []UserParam{{Name: "origin", Value: "local"}}

	cv, user, err := groups.resolveParams([]ParamGroupRef{{Ref: "common"}}, local, localUser)
	if err != nil {
		t.Fatalf("resolveParams: %v", err)
	}
	wantCV := []CVParam{
		{Accession: "MS:1000511", Name: "ms level", Value: "1"},
		{Accession: "MS:1000127", Name: "centroid spectrum"},
		{Accession: "MS:1000285", Name: "total ion current", Value: "1234"},
	}
	if diff := cmp.Diff(wantCV, cv); diff != "" {
		t.Fatalf("cv params (-want +got):\n%s", diff)
	}
	wantUser := []UserParam{
		{Name: "origin", Value: "group"},
		{Name: "origin", Value: "local"},
	}
	if diff := cmp.Diff(wantUser, user); diff != "" {
		t.Fatalf("user params (-want +got):\n%s", diff)
	}
}

func TestResolveParamsLocalOverridesGroup(t *testing.T) {
	groups := groupTable{
		"g": &ReferenceableParamGroup{
			ID: "g",
			CVParams: []CVParam{
				{Accession: "MS:1000511", Name: "ms level", Value: "1"},
				{Accession: "MS:1000127", Name: "centroid spectrum"},
			},
		},
	}
	local := []CVParam{{Accession: "MS:1000511", Name: "ms level", Value: "2"}}

	cv, _, err := groups.resolveParams([]ParamGroupRef{{Ref: "g"}}, local, nil)
	if err != nil {
		t.Fatalf("resolveParams: %v", err)
	}
	// The override lands at the group param's position, not appended.
	want := []CVParam{
		{Accession: "MS:1000511", Name: "ms level", Value: "2"},
		{Accession: "MS:1000127", Name: "centroid spectrum"},
	}
	if diff := cmp.Diff(want, cv); diff != "" {
		t.Fatalf("cv params (-want +got):\n%s", diff)
	}
}

func TestResolveParamsDanglingRef(t *testing.T) {
	groups := groupTable{}
	_, _, err := groups.resolveParams([]ParamGroupRef{{Ref: "missing"}}, nil, nil)
	if !errors.Is(err, ErrReferenceResolution) {
		t.Fatalf("err = %v, want ErrReferenceResolution", err)
	}
}

const groupHeader = `<referenceableParamGroupList count="1">
<referenceableParamGroup id="spectrumDefaults">
<cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>
<cvParam cvRef="MS" accession="MS:1000128" name="profile spectrum"/>
</referenceableParamGroup>
</referenceableParamGroupList>
`

func TestGroupResolutionThroughSpectrum(t *testing.T) {
	spec := rec{id: "scan=1", xml: `<spectrum index="0" id="scan=1" defaultArrayLength="0">
<referenceableParamGroupRef ref="spectrumDefaults"/>
<cvParam cvRef="MS" accession="MS:1000285" name="total ion current" value="99"/>
</spectrum>`}
	doc := buildDoc(docOpts{header: groupHeader, spectra: []rec{spec}})
	rd := openDoc(t, doc, nil)

	s, err := rd.Spectra().GetByID("scan=1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got := s.MSLevel(); got != 1 {
		t.Fatalf("MSLevel = %d, want 1 via group", got)
	}
	if !s.Profile() {
		t.Fatal("profile param from group not present")
	}
	tic, err := s.TotalIonCurrent()
	if err != nil || tic != 99 {
		t.Fatalf("TotalIonCurrent = %v, %v", tic, err)
	}
}

func TestDanglingRefThroughSpectrum(t *testing.T) {
	spec := rec{id: "scan=1", xml: `<spectrum index="0" id="scan=1" defaultArrayLength="0">
<referenceableParamGroupRef ref="neverDefined"/>
</spectrum>`}
	doc := buildDoc(docOpts{spectra: []rec{spec}})
	rd := openDoc(t, doc, nil)

	// Opening succeeds; the bad reference surfaces on the record lookup.
	if got := rd.Spectra().Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	_, err := rd.Spectra().GetByID("scan=1")
	if !errors.Is(err, ErrReferenceResolution) {
		t.Fatalf("err = %v, want ErrReferenceResolution", err)
	}
}

func TestParamGroupAccessor(t *testing.T) {
	doc := buildDoc(docOpts{header: groupHeader})
	rd := openDoc(t, doc, nil)

	if got := len(rd.ParamGroups()); got != 1 {
		t.Fatalf("ParamGroups() len = %d", got)
	}
	g, err := rd.ParamGroup("spectrumDefaults")
	if err != nil {
		t.Fatalf("ParamGroup: %v", err)
	}
	if g.ID != "spectrumDefaults" || len(g.CVParams) != 2 {
		t.Fatalf("group = %+v", g)
	}
	if _, err := rd.ParamGroup("nope"); !errors.Is(err, ErrReferenceResolution) {
		t.Fatalf("err = %v, want ErrReferenceResolution", err)
	}
}
