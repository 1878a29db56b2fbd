package model

import (
	"fmt"
	"strings"
)

// TagCategory groups tags. The closed set mirrors what the CMS mapping
// produces.
type TagCategory string

const (
	CategoryType  TagCategory = "TYPE"
	CategoryTrack TagCategory = "TRACK"
	CategoryTopic TagCategory = "TOPIC"
	CategoryTheme TagCategory = "THEME"
)

// ParseTagCategory returns the category named s.
func ParseTagCategory(s string) (TagCategory, error) {
	switch c := TagCategory(s); c {
	case CategoryType, CategoryTrack, CategoryTopic, CategoryTheme:
		return c, nil
	default:
		return "", fmt.Errorf("unknown tag category %q", s)
	}
}

// Valid reports whether c is one of the known categories.
func (c TagCategory) Valid() bool {
	_, err := ParseTagCategory(string(c))
	return err == nil
}

// TagID builds the natural key of a tag: CATEGORY_NAME.
func TagID(category TagCategory, name string) string {
	return string(category) + "_" + name
}

// CategoryOf extracts the category prefix from a tag id, or "" when the id
// does not follow the CATEGORY_NAME convention.
func CategoryOf(tagID string) TagCategory {
	prefix, _, ok := strings.Cut(tagID, "_")
	if !ok {
		return ""
	}
	return TagCategory(prefix)
}
