package extractor

import (
	"fmt"
	"slices"
	"strings"
)

// The CMS has no way to mark keynotes or the after-hours party, so they are
// recognized by title and by configured topic ids. Everything that depends
// on these literals stays in this file.
//
// TODO: replace these rules with a keynote tag in the CMS export once the
// vendor supports one, and drop KeynoteIDs from the config.

const (
	keynoteColor   = "#27e4fd"
	keynoteFlagTag = "FLAG_KEYNOTE"
	afterHoursID   = "__afterhours__"
)

// isKeynotePlaceholder reports whether a topic is the empty keynote slot
// the CMS exports next to the real keynote sessions.
func isKeynotePlaceholder(t VendorTopic) bool {
	return strings.EqualFold(t.Title, "keynote")
}

// specialID returns the published id of a keynote or after-hours topic, and
// whether the topic is a keynote.
func (c Config) specialID(t VendorTopic) (id string, keynote bool) {
	if strings.EqualFold(t.Title, "after hours") {
		return afterHoursID, false
	}
	i := slices.Index(c.KeynoteIDs, t.ID)
	switch {
	case i < 0:
		return t.ID, false
	case i == 0:
		return "__keynote__", true
	default:
		return fmt.Sprintf("__keynote%d__", i+1), true
	}
}
