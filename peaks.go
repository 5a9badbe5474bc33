package mzml

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
)

// arrayByRole returns the first binary array with the given semantic role.
func arrayByRole(arrays []BinaryDataArray, r ArrayRole) *BinaryDataArray {
	for i := range arrays {
		if arrays[i].Role == r {
			return &arrays[i]
		}
	}
	return nil
}

// MZ decodes the spectrum's m/z array.
func (s *Spectrum) MZ() ([]float64, error) {
	a := arrayByRole(s.BinaryArrays, RoleMz)
	if a == nil {
		return nil, errors.Wrapf(ErrNotFound, "spectrum %q has no m/z array", s.ID)
	}
	return a.Decode()
}

// Intensity decodes the spectrum's intensity array.
func (s *Spectrum) Intensity() ([]float64, error) {
	a := arrayByRole(s.BinaryArrays, RoleIntensity)
	if a == nil {
		return nil, errors.Wrapf(ErrNotFound, "spectrum %q has no intensity array", s.ID)
	}
	return a.Decode()
}

// Peaks decodes the m/z and intensity arrays and pairs them up.
func (s *Spectrum) Peaks() ([]Peak, error) {
	mz, err := s.MZ()
	if err != nil {
		return nil, err
	}
	intens, err := s.Intensity()
	if err != nil {
		return nil, err
	}
	if len(mz) != len(intens) {
		return nil, errors.Wrapf(ErrLengthMismatch,
			"spectrum %q: %d m/z values, %d intensities", s.ID, len(mz), len(intens))
	}
	peaks := make([]Peak, len(mz))
	for i := range mz {
		peaks[i] = Peak{Mz: mz[i], Intens: intens[i]}
	}
	return peaks, nil
}

// BasePeak returns the most intense peak of the spectrum, decoding the
// peak arrays to find it.
func (s *Spectrum) BasePeak() (Peak, error) {
	mz, err := s.MZ()
	if err != nil {
		return Peak{}, err
	}
	intens, err := s.Intensity()
	if err != nil {
		return Peak{}, err
	}
	if len(mz) != len(intens) {
		return Peak{}, errors.Wrapf(ErrLengthMismatch,
			"spectrum %q: %d m/z values, %d intensities", s.ID, len(mz), len(intens))
	}
	if len(intens) == 0 {
		return Peak{}, errors.Wrapf(ErrNotFound, "spectrum %q is empty", s.ID)
	}
	i := floats.MaxIdx(intens)
	return Peak{Mz: mz[i], Intens: intens[i]}, nil
}

// MSLevel returns the spectrum's MS level, 0 when not declared.
func (s *Spectrum) MSLevel() int {
	p := cvParam(s.CVParams, cvMSLevel)
	if p == nil {
		return 0
	}
	v, err := strconv.Atoi(p.Value)
	if err != nil {
		return 0
	}
	return v
}

// Centroid reports whether the spectrum declares itself centroided.
func (s *Spectrum) Centroid() bool {
	return hasAccession(s.CVParams, cvCentroidSpectrum)
}

// Profile reports whether the spectrum declares itself profile mode.
func (s *Spectrum) Profile() bool {
	return hasAccession(s.CVParams, cvProfileSpectrum)
}

// Polarity returns the declared scan polarity. The param may sit on the
// spectrum itself or on one of its scans.
func (s *Spectrum) Polarity() Polarity {
	if p := polarityOf(s.CVParams); p != PolarityUnknown {
		return p
	}
	for i := range s.Scans {
		if p := polarityOf(s.Scans[i].CVParams); p != PolarityUnknown {
			return p
		}
	}
	return PolarityUnknown
}

func polarityOf(params []CVParam) Polarity {
	if hasAccession(params, cvPositiveScan) {
		return PolarityPositive
	}
	if hasAccession(params, cvNegativeScan) {
		return PolarityNegative
	}
	return PolarityUnknown
}

// RetentionTime returns the scan start time in seconds, converting from
// the declared unit. ok is false when no scan carries one.
func (s *Spectrum) RetentionTime() (float64, bool) {
	for i := range s.Scans {
		p := cvParam(s.Scans[i].CVParams, cvScanStartTime)
		if p == nil || p.Value == "" {
			continue
		}
		v, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			continue
		}
		if p.UnitAccession == cvUnitMinute || p.UnitAccession == cvUnitMinuteObs {
			v *= 60
		}
		return v, true
	}
	return 0, false
}

// IonInjectionTime returns the ion injection time in milliseconds.
func (s *Spectrum) IonInjectionTime() (float64, bool) {
	for i := range s.Scans {
		if v, ok := cvFloat(s.Scans[i].CVParams, cvIonInjectionTime); ok {
			return v, true
		}
	}
	return cvFloat(s.CVParams, cvIonInjectionTime)
}

// TotalIonCurrent returns the declared total ion current param, falling
// back to summing the intensity array when the file omits it.
func (s *Spectrum) TotalIonCurrent() (float64, error) {
	if v, ok := cvFloat(s.CVParams, cvTotalIonCurrent); ok {
		return v, nil
	}
	intens, err := s.Intensity()
	if err != nil {
		return 0, err
	}
	return floats.Sum(intens), nil
}

// BasePeakMz returns the declared base peak m/z param.
func (s *Spectrum) BasePeakMz() (float64, bool) {
	return cvFloat(s.CVParams, cvBasePeakMz)
}

// BasePeakIntensity returns the declared base peak intensity param.
func (s *Spectrum) BasePeakIntensity() (float64, bool) {
	return cvFloat(s.CVParams, cvBasePeakIntensity)
}

// Mz returns the selected ion's m/z.
func (si *SelectedIon) Mz() (float64, bool) {
	return cvFloat(si.CVParams, cvSelectedIonMz)
}

// ChargeState returns the selected ion's charge.
func (si *SelectedIon) ChargeState() (int, bool) {
	p := cvParam(si.CVParams, cvChargeState)
	if p == nil || p.Value == "" {
		return 0, false
	}
	v, err := strconv.Atoi(p.Value)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PeakIntensity returns the selected ion's peak intensity.
func (si *SelectedIon) PeakIntensity() (float64, bool) {
	return cvFloat(si.CVParams, cvPeakIntensity)
}

// CollisionEnergy returns the activation's collision energy.
func (a *Activation) CollisionEnergy() (float64, bool) {
	return cvFloat(a.CVParams, cvCollisionEnergy)
}

// Type returns the dissociation method as a display name, empty when no
// known method accession is present.
func (a *Activation) Type() string {
	for _, p := range a.CVParams {
		if name, ok := activationTypeAccessions[p.Accession]; ok {
			return name
		}
	}
	return ""
}

// TargetMz returns the isolation window's target m/z.
func (w *IsolationWindow) TargetMz() (float64, bool) {
	return cvFloat(w.CVParams, cvIsolationTargetMz)
}

// LowerOffset returns the isolation window's lower m/z offset.
func (w *IsolationWindow) LowerOffset() (float64, bool) {
	return cvFloat(w.CVParams, cvIsolationLowerOffset)
}

// UpperOffset returns the isolation window's upper m/z offset.
func (w *IsolationWindow) UpperOffset() (float64, bool) {
	return cvFloat(w.CVParams, cvIsolationUpperOffset)
}

// Type returns the chromatogram's declared kind as a display name, empty
// when no known type accession is present.
func (c *Chromatogram) Type() string {
	for _, p := range c.CVParams {
		if name, ok := chromatogramTypeAccessions[p.Accession]; ok {
			return name
		}
	}
	return ""
}

// Time decodes the chromatogram's time array, converting to seconds when
// the array declares minutes.
func (c *Chromatogram) Time() ([]float64, error) {
	a := arrayByRole(c.BinaryArrays, RoleTime)
	if a == nil {
		return nil, errors.Wrapf(ErrNotFound, "chromatogram %q has no time array", c.ID)
	}
	values, err := a.Decode()
	if err != nil {
		return nil, err
	}
	if p := cvParam(a.CVParams, a.RoleAccession); p != nil &&
		(p.UnitAccession == cvUnitMinute || p.UnitAccession == cvUnitMinuteObs) {
		floats.Scale(60, values)
	}
	return values, nil
}

// Intensity decodes the chromatogram's intensity array.
func (c *Chromatogram) Intensity() ([]float64, error) {
	a := arrayByRole(c.BinaryArrays, RoleIntensity)
	if a == nil {
		return nil, errors.Wrapf(ErrNotFound, "chromatogram %q has no intensity array", c.ID)
	}
	return a.Decode()
}
