package track

import "strings"

const IconUnknown = "UNKNOWN"

// Activity names, lower case, in the languages the legacy recorders shipped
// with as category defaults.
var activityIcons = map[string]string{
	"walk":            "WALK",
	"walking":         "WALK",
	"hike":            "WALK",
	"hiking":          "WALK",
	"run":             "RUN",
	"running":         "RUN",
	"jogging":         "RUN",
	"bike":            "BIKE",
	"biking":          "BIKE",
	"cycling":         "BIKE",
	"mountain biking": "MOUNTAIN_BIKE",
	"road biking":     "ROAD_BIKE",
	"drive":           "DRIVE",
	"driving":         "DRIVE",
	"car":             "DRIVE",
	"airplane":        "AIRPLANE",
	"flying":          "AIRPLANE",
	"boat":            "BOAT",
	"boating":         "BOAT",
	"sailing":         "SAILING",
	"skiing":          "SKI",
	"snowboarding":    "SNOW_BOARDING",
	"gehen":           "WALK",
	"laufen":          "RUN",
	"radfahren":       "BIKE",
}

// IconFor derives an icon from a free form category.
func IconFor(category string) string {
	if icon, ok := activityIcons[strings.ToLower(strings.TrimSpace(category))]; ok {
		return icon
	}
	return IconUnknown
}
