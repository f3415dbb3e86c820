package notifications

import (
	"fmt"
	"slices"

	"github.com/albapepper/skyvibes/internal/weather"
)

// TimeBucket is the time-of-day context used in message salutations.
type TimeBucket string

const (
	BucketNight     TimeBucket = "night"
	BucketMorning   TimeBucket = "morning"
	BucketAfternoon TimeBucket = "afternoon"
	BucketEvening   TimeBucket = "evening"
	BucketDay       TimeBucket = "day"
)

// BucketForHour maps an hour (0-23) to a bucket. The ranges overlap; they
// are tested in the order night, morning, afternoon, evening and the first
// match wins, so night covers 18-23 and 0-6.
func BucketForHour(hour int) TimeBucket {
	isNight := hour >= 18 || hour <= 6
	isMorning := hour >= 5 && hour < 12
	isAfternoon := hour >= 12 && hour < 17
	isEvening := hour >= 17 && hour < 22

	switch {
	case isNight:
		return BucketNight
	case isMorning:
		return BucketMorning
	case isAfternoon:
		return BucketAfternoon
	case isEvening:
		return BucketEvening
	default:
		return BucketDay
	}
}

var salutations = map[TimeBucket]string{
	BucketNight:     "🌙 Tonight in",
	BucketMorning:   "🌅 Good morning from",
	BucketAfternoon: "☀️ Afternoon in",
	BucketEvening:   "🌆 Evening in",
	BucketDay:       "🌤️ In",
}

// Salutation returns the emoji prefix for the bucket.
func (b TimeBucket) Salutation() string {
	if s, ok := salutations[b]; ok {
		return s
	}
	return salutations[BucketDay]
}

var (
	rainCodes  = []int{61, 63, 65}
	stormCodes = []int{95, 96, 99}
)

const (
	heatThresholdC = 35
	coldThresholdC = 10
)

// WeatherSentence composes the weather message body. Rules are checked in
// priority order and the first match wins: sky codes beat temperature.
func WeatherSentence(snap weather.Snapshot, placeName string, bucket TimeBucket) string {
	var line string
	switch {
	case snap.Code == 0:
		line = "Sun's out, no excuses to stay in bed (but we support it)."
	case slices.Contains(rainCodes, snap.Code):
		line = "Umbrella? Nah, just vibe in the rain."
	case slices.Contains(stormCodes, snap.Code):
		line = "Sky's angry. Maybe you're the chosen one today."
	case snap.TemperatureC > heatThresholdC:
		line = "It's a toaster outside. Don't become toast."
	case snap.TemperatureC < coldThresholdC:
		line = "Shiver me timbers, it's cold AF. Don't forget to wear a jacket."
	default:
		line = "Just a regular day to make legendary choices."
	}
	return fmt.Sprintf("%s %s: %s", bucket.Salutation(), placeName, line)
}

// Thoughts is the pool for the "Thought of the Hour" message.
var Thoughts = []string{
	"Weather changes fast — just like people's mood at Monday 9 AM.",
	"Today's forecast: 100% chance of slay, even if it rains.",
	"Cloudy minds need sunny walks.",
	"Life is like weather: mostly unpredictable, occasionally stormy, always beautiful.",
	"Even the storm ends — unless you're in finals week.",
	"Humidity is just the earth's way of asking for a spa day.",
	"Forecast says: bring good vibes not umbrellas.",
}

// RandomThought picks one thought uniformly.
func RandomThought(rnd RandomSource) string {
	return Thoughts[rnd.IntN(len(Thoughts))]
}

const thoughtTitle = "🌀 Thought of the Hour"

// WeatherTitle is the title of the weather message.
func WeatherTitle(placeName string) string {
	return fmt.Sprintf("📍 %s Weather Update", placeName)
}

// Compose returns the two messages for one device: the weather update
// followed by the thought of the hour.
func Compose(token, placeName string, snap weather.Snapshot, bucket TimeBucket, thought string) []Message {
	return []Message{
		NewMessage(token, WeatherTitle(placeName), WeatherSentence(snap, placeName, bucket)),
		NewMessage(token, thoughtTitle, thought),
	}
}
