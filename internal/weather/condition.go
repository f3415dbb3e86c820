package weather

import "slices"

// Condition is a coarse sky state derived from a WMO weather code.
type Condition string

const (
	ConditionClear        Condition = "clear"
	ConditionPartlyCloudy Condition = "partly_cloudy"
	ConditionFog          Condition = "fog"
	ConditionRain         Condition = "rain"
	ConditionSnow         Condition = "snow"
	ConditionStorm        Condition = "storm"
	ConditionUnknown      Condition = "unknown"
)

var (
	partlyCloudyCodes = []int{1, 2, 3}
	fogCodes          = []int{45, 48}
	rainCodes         = []int{51, 53, 55, 61, 63, 65, 80, 81, 82}
	snowCodes         = []int{71, 73, 75, 85, 86}
	stormCodes        = []int{95, 96, 99}
)

// Classify maps a weather code to its Condition.
func Classify(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case slices.Contains(partlyCloudyCodes, code):
		return ConditionPartlyCloudy
	case slices.Contains(fogCodes, code):
		return ConditionFog
	case slices.Contains(rainCodes, code):
		return ConditionRain
	case slices.Contains(snowCodes, code):
		return ConditionSnow
	case slices.Contains(stormCodes, code):
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}

// Emoji returns the display emoji for the condition.
func (c Condition) Emoji() string {
	switch c {
	case ConditionClear:
		return "☀️"
	case ConditionPartlyCloudy:
		return "⛅"
	case ConditionRain:
		return "🌧️"
	case ConditionSnow:
		return "❄️"
	case ConditionStorm:
		return "⛈️"
	default:
		return "🌫️"
	}
}

// Mood returns a one-line flavour text for the condition.
func (c Condition) Mood() string {
	switch c {
	case ConditionClear:
		return "Perfect beach day!"
	case ConditionPartlyCloudy:
		return "Partly perfect!"
	case ConditionFog:
		return "Foggy adventures"
	case ConditionRain:
		return "Rainy day vibes"
	case ConditionSnow:
		return "Winter wonderland"
	case ConditionStorm:
		return "Thunder & lightning!"
	default:
		return "Mysterious vibes"
	}
}
