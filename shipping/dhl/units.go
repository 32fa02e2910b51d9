package dhl

// Conversion factors
const (
	KgPerLb = 0.453592
	CmPerIn = 2.54
)

// LbToKg converts pounds to kilograms
func LbToKg(lb float64) float64 { return lb * KgPerLb }

// KgToLb converts kilograms to pounds
func KgToLb(kg float64) float64 { return kg / KgPerLb }

// InToCm converts inches to centimeters
func InToCm(in float64) float64 { return in * CmPerIn }

// CmToIn converts centimeters to inches
func CmToIn(cm float64) float64 { return cm / CmPerIn }
