package mzml

// Snapshot of the PSI-MS controlled-vocabulary terms this package
// interprets. The tables are versioned with the package; accessions outside
// them resolve to RoleOther with the raw accession retained, never an
// error, since the CV evolves and user-defined arrays are legal.

// CV accessions referenced directly by readers of spectrum metadata.
const (
	cvMSLevel              = `MS:1000511`
	cvCentroidSpectrum     = `MS:1000127`
	cvProfileSpectrum      = `MS:1000128`
	cvPositiveScan         = `MS:1000129`
	cvNegativeScan         = `MS:1000130`
	cvTotalIonCurrent      = `MS:1000285`
	cvScanStartTime        = `MS:1000016`
	cvIonInjectionTime     = `MS:1000927`
	cvSelectedIonMz        = `MS:1000744`
	cvChargeState          = `MS:1000041`
	cvPeakIntensity        = `MS:1000042`
	cvIsolationTargetMz    = `MS:1000827`
	cvIsolationLowerOffset = `MS:1000828`
	cvIsolationUpperOffset = `MS:1000829`
	cvCollisionEnergy      = `MS:1000045`
	cvBasePeakMz           = `MS:1000504`
	cvBasePeakIntensity    = `MS:1000505`
	cvMD5                  = `MS:1000568`
	cvSHA1                 = `MS:1000569`

	// Unit accessions for time values
	cvUnitMinute      = `UO:0000031`
	cvUnitMinuteObs   = `MS:1000038` // obsolete alias still found in the wild
	cvUnitMillisecond = `UO:0000028`
)

// CVTerm is the resolved meaning of a CV accession.
type CVTerm struct {
	Accession string
	Name      string
	Role      ArrayRole
	ValueType ValueType
}

// binary data array type accessions
var arrayRoleAccessions = map[string]ArrayRole{
	`MS:1000514`: RoleMz,        // m/z array
	`MS:1000515`: RoleIntensity, // intensity array
	`MS:1000595`: RoleTime,      // time array
	`MS:1000516`: RoleCharge,    // charge array
	`MS:1000517`: RoleSignalToNoise,
	`MS:1000617`: RoleWavelength,
	`MS:1000820`: RoleFlowRate,
	`MS:1000821`: RolePressure,
	`MS:1000822`: RoleTemperature,
	`MS:1002529`: RoleResolution,
	`MS:1002530`: RoleBaseline,
	`MS:1002742`: RoleNoise,
	`MS:1003143`: RoleMass,
	// The ion mobility family: raw, mean and deconvoluted variants all
	// carry per-element mobility values.
	`MS:1002477`: RoleIonMobility, // mean ion mobility drift time array
	`MS:1002816`: RoleIonMobility, // mean ion mobility array
	`MS:1002893`: RoleIonMobility, // ion mobility array
	`MS:1003006`: RoleIonMobility, // mean inverse reduced ion mobility array
	`MS:1003007`: RoleIonMobility, // raw ion mobility array
	`MS:1003008`: RoleIonMobility, // raw inverse reduced ion mobility array
	`MS:1003153`: RoleIonMobility, // raw ion mobility drift time array
	`MS:1003154`: RoleIonMobility, // deconvoluted ion mobility array
	`MS:1003155`: RoleIonMobility, // deconvoluted inverse reduced ion mobility array
	`MS:1003156`: RoleIonMobility, // deconvoluted ion mobility drift time array
}

// binary-data-type accessions
var valueTypeAccessions = map[string]ValueType{
	`MS:1000521`: ValueTypeFloat32, // 32-bit float
	`MS:1000523`: ValueTypeFloat64, // 64-bit float
	`MS:1000519`: ValueTypeInt32,   // 32-bit integer
	`MS:1000522`: ValueTypeInt64,   // 64-bit integer
}

// binary data compression accessions
var compressionAccessions = map[string]Compression{
	`MS:1000576`: CompressionNone,
	`MS:1000574`: CompressionZlib,
	`MS:1003780`: CompressionZstd,
	`MS:1002312`: CompressionNumpressLinear,
	`MS:1002313`: CompressionNumpressPic,
	`MS:1002314`: CompressionNumpressSlof,
	`MS:1002746`: CompressionNumpressLinearZlib,
	`MS:1002747`: CompressionNumpressPicZlib,
	`MS:1002748`: CompressionNumpressSlofZlib,
	`MS:1003783`: CompressionNumpressLinearZstd,
	`MS:1003784`: CompressionNumpressPicZstd,
	`MS:1003785`: CompressionNumpressSlofZstd,
}

// dissociation method accessions
var activationTypeAccessions = map[string]string{
	`MS:1000133`: "collision-induced dissociation",
	`MS:1000134`: "plasma desorption",
	`MS:1000135`: "post-source decay",
	`MS:1000136`: "surface-induced dissociation",
	`MS:1000242`: "blackbody infrared radiative dissociation",
	`MS:1000250`: "electron capture dissociation",
	`MS:1000262`: "infrared multiphoton dissociation",
	`MS:1000282`: "sustained off-resonance irradiation",
	`MS:1000422`: "beam-type collision-induced dissociation",
	`MS:1000433`: "low-energy collision-induced dissociation",
	`MS:1000435`: "photodissociation",
	`MS:1000598`: "electron transfer dissociation",
	`MS:1000599`: "pulsed q dissociation",
	`MS:1002000`: "LIFT",
	`MS:1002631`: "Electron-Transfer/Higher-Energy Collision Dissociation (EThcD)",
}

// chromatogram type accessions
var chromatogramTypeAccessions = map[string]string{
	`MS:1000235`: "total ion current chromatogram",
	`MS:1000627`: "selected ion current chromatogram",
	`MS:1000628`: "basepeak chromatogram",
	`MS:1000812`: "absorption chromatogram",
	`MS:1000813`: "emission chromatogram",
	`MS:1001472`: "selected ion monitoring chromatogram",
	`MS:1001473`: "selected reaction monitoring chromatogram",
	`MS:4000025`: "precursor ion current chromatogram",
}

// display names for the accessions the tables above cover, plus a few
// common spectrum-level terms, so resolved terms print usefully.
var cvNames = map[string]string{
	`MS:1000514`:        "m/z array",
	`MS:1000515`:        "intensity array",
	`MS:1000595`:        "time array",
	`MS:1000516`:        "charge array",
	`MS:1000517`:        "signal to noise array",
	`MS:1000617`:        "wavelength array",
	`MS:1000820`:        "flow rate array",
	`MS:1000821`:        "pressure array",
	`MS:1000822`:        "temperature array",
	`MS:1002529`:        "resolution array",
	`MS:1002530`:        "baseline array",
	`MS:1002742`:        "noise array",
	`MS:1003143`:        "mass array",
	`MS:1002477`:        "mean ion mobility drift time array",
	`MS:1002816`:        "mean ion mobility array",
	`MS:1002893`:        "ion mobility array",
	`MS:1003006`:        "mean inverse reduced ion mobility array",
	`MS:1003007`:        "raw ion mobility array",
	`MS:1003008`:        "raw inverse reduced ion mobility array",
	`MS:1003153`:        "raw ion mobility drift time array",
	`MS:1003154`:        "deconvoluted ion mobility array",
	`MS:1003155`:        "deconvoluted inverse reduced ion mobility array",
	`MS:1003156`:        "deconvoluted ion mobility drift time array",
	`MS:1000521`:        "32-bit float",
	`MS:1000523`:        "64-bit float",
	`MS:1000519`:        "32-bit integer",
	`MS:1000522`:        "64-bit integer",
	`MS:1000576`:        "no compression",
	`MS:1000574`:        "zlib compression",
	`MS:1003780`:        "zstd compression",
	`MS:1002312`:        "MS-Numpress linear prediction compression",
	`MS:1002313`:        "MS-Numpress positive integer compression",
	`MS:1002314`:        "MS-Numpress short logged float compression",
	`MS:1002746`:        "MS-Numpress linear prediction compression followed by zlib compression",
	`MS:1002747`:        "MS-Numpress positive integer compression followed by zlib compression",
	`MS:1002748`:        "MS-Numpress short logged float compression followed by zlib compression",
	`MS:1003783`:        "MS-Numpress linear prediction compression followed by zstd compression",
	`MS:1003784`:        "MS-Numpress positive integer compression followed by zstd compression",
	`MS:1003785`:        "MS-Numpress short logged float compression followed by zstd compression",
	cvMSLevel:           "ms level",
	cvCentroidSpectrum:  "centroid spectrum",
	cvProfileSpectrum:   "profile spectrum",
	cvPositiveScan:      "positive scan",
	cvNegativeScan:      "negative scan",
	cvTotalIonCurrent:   "total ion current",
	cvScanStartTime:     "scan start time",
	cvIonInjectionTime:  "ion injection time",
	cvSelectedIonMz:     "selected ion m/z",
	cvChargeState:       "charge state",
	cvPeakIntensity:     "peak intensity",
	cvCollisionEnergy:   "collision energy",
	cvBasePeakMz:        "base peak m/z",
	cvBasePeakIntensity: "base peak intensity",
	cvMD5:               "MD5",
	cvSHA1:              "SHA-1",
}

// ResolveCV maps a CV accession to its semantic role, value type hint and
// display name. Unknown accessions yield a term with Role RoleOther, the
// accession kept verbatim and an empty name.
func ResolveCV(accession string) CVTerm {
	t := CVTerm{Accession: accession, Role: RoleOther}
	if role, ok := arrayRoleAccessions[accession]; ok {
		t.Role = role
	}
	if vt, ok := valueTypeAccessions[accession]; ok {
		t.ValueType = vt
	}
	t.Name = cvNames[accession]
	return t
}

// RoleForArray maps a binary-data-array accession to its semantic role.
func RoleForArray(accession string) ArrayRole {
	if role, ok := arrayRoleAccessions[accession]; ok {
		return role
	}
	return RoleOther
}

// compressionFor maps a compression accession to the closed Compression
// set; ok is false for accessions outside it.
func compressionFor(accession string) (Compression, bool) {
	c, ok := compressionAccessions[accession]
	return c, ok
}

// valueTypeFor maps a precision accession to the closed ValueType set.
func valueTypeFor(accession string) (ValueType, bool) {
	v, ok := valueTypeAccessions[accession]
	return v, ok
}
