package weather

// Intensity is a discrete precipitation rate bucket.
type Intensity string

const (
	IntensityNone      Intensity = "none"
	IntensityVeryLight Intensity = "very-light"
	IntensityLight     Intensity = "light"
	IntensityModerate  Intensity = "moderate"
	IntensityHeavy     Intensity = "heavy"
)

// Intensities lists the non-empty buckets in ascending order.
var Intensities = []Intensity{IntensityVeryLight, IntensityLight, IntensityModerate, IntensityHeavy}

type threshold struct {
	bucket Intensity
	min    float64
}

// Highest first; the first threshold the rate reaches wins.
var precipThresholds = map[string][]threshold{
	"in/h": {
		{IntensityHeavy, 0.4},
		{IntensityModerate, 0.1},
		{IntensityLight, 0.017},
		{IntensityVeryLight, 0.002},
	},
	"mm/h": {
		{IntensityHeavy, 5.08},
		{IntensityModerate, 2.540},
		{IntensityLight, 0.432},
		{IntensityVeryLight, 0.051},
	},
}

// PrecipIntensity buckets a precipitation rate given in unit ("in/h" or "mm/h").
func PrecipIntensity(rate float64, unit string) Intensity {
	for _, t := range precipThresholds[unit] {
		if rate >= t.min {
			return t.bucket
		}
	}
	return IntensityNone
}
