package extractor

// trackColors is the closed set of track background colors, keyed by the
// tag name after the TRACK_ prefix.
var trackColors = map[string]string{
	"ANDROID":       "#AED581",
	"MOBILEWEB":     "#FFF176",
	"CLOUD":         "#80CBC4",
	"DESIGN":        "#F8BBD0",
	"FIREBASE":      "#FFD54F",
	"GAMES":         "#DCE775",
	"IOT":           "#BCAAA4",
	"LOCATION&MAPS": "#EF9A9A",
	"PLAY":          "#CE93D8",
	"SEARCH":        "#90CAF9",
	"TV&LIVINGROOM": "#B3E5FC",
	"VR":            "#FF8A65",
	"MISC":          "#C5C9E9",
	"ADS":           "#B0BEC5",
	"ANDROIDSTUDIO": "#C4E2A2",
	"AUTO":          "#CFD8DC",
	"MONETIZATION":  "#A4D7A5",
	"WEAR":          "#FFCD7A",
}

// TrackColor returns the color of a track, or "" for tracks outside the
// table.
func TrackColor(track string) string {
	return trackColors[track]
}
