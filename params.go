package mzml

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// groupTable maps referenceableParamGroup ids to their definitions. It is
// built once per file and never mutated afterwards.
type groupTable map[string]*ReferenceableParamGroup

// group returns the definition for id. A dangling reference is a hard
// parse error, never a silently-empty result.
func (t groupTable) group(id string) (*ReferenceableParamGroup, error) {
	g, ok := t[id]
	if !ok {
		return nil, errors.Wrapf(ErrReferenceResolution, "group %q", id)
	}
	return g, nil
}

// resolveParams expands group references ahead of the local params. A local
// cvParam overrides a group's param with the same accession, last write
// wins; userParams are concatenated in the same order.
func (t groupTable) resolveParams(refs []ParamGroupRef, cv []CVParam, user []UserParam) ([]CVParam, []UserParam, error) {
	if len(refs) == 0 {
		return cv, user, nil
	}
	var outCV []CVParam
	var outUser []UserParam
	for _, ref := range refs {
		g, err := t.group(ref.Ref)
		if err != nil {
			return nil, nil, err
		}
		outCV = append(outCV, g.CVParams...)
		outUser = append(outUser, g.UserParams...)
	}
	for _, p := range cv {
		if i := cvParamIndex(outCV, p.Accession); i >= 0 {
			outCV[i] = p
		} else {
			outCV = append(outCV, p)
		}
	}
	outUser = append(outUser, user...)
	return outCV, outUser, nil
}

func cvParamIndex(params []CVParam, accession string) int {
	if accession == "" {
		return -1
	}
	for i, p := range params {
		if p.Accession == accession {
			return i
		}
	}
	return -1
}

// cvParam returns the first param with the given accession, or nil.
func cvParam(params []CVParam, accession string) *CVParam {
	for i := range params {
		if params[i].Accession == accession {
			return &params[i]
		}
	}
	return nil
}

// cvFloat returns the numeric value of the param with the given accession.
func cvFloat(params []CVParam, accession string) (float64, bool) {
	p := cvParam(params, accession)
	if p == nil || p.Value == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(p.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func hasAccession(params []CVParam, accession string) bool {
	return cvParam(params, accession) != nil
}
