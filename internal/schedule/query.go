package schedule

import (
	"slices"

	"github.com/treffen/confsync/internal/model"
)

// Query selects one schedule view. The set of views is closed; Helper.Load
// handles every implementation below.
type Query interface {
	query()
}

// AllItems lists every scheduled session starting within [Start, End].
type AllItems struct {
	Start  int64
	End    int64
	Filter Filter
}

// StarredItems lists the active account's bookmarked sessions starting
// within [Start, End].
type StarredItems struct {
	Start  int64
	End    int64
	Filter Filter
}

// MySchedule lists every session the active account bookmarked, including
// sessions without a parseable start time.
type MySchedule struct{}

// Search ranks sessions by how well their indexed text matches Term.
type Search struct {
	Term string
}

func (AllItems) query()     {}
func (StarredItems) query() {}
func (MySchedule) query()   {}
func (Search) query()       {}

// Filter selects sessions by tag. Tags of one category are alternatives; a
// session must match every category that has a selection. The zero value
// matches everything.
type Filter struct {
	selected map[model.TagCategory][]string
}

// NewFilter returns a filter over tagIDs. Ids that do not follow the
// CATEGORY_NAME convention are ignored.
func NewFilter(tagIDs ...string) Filter {
	var f Filter
	for _, id := range tagIDs {
		f.Add(id)
	}
	return f
}

// Add selects a tag and reports whether the filter changed.
func (f *Filter) Add(tagID string) bool {
	category := model.CategoryOf(tagID)
	if !category.Valid() {
		return false
	}
	if f.selected == nil {
		f.selected = make(map[model.TagCategory][]string)
	}
	if slices.Contains(f.selected[category], tagID) {
		return false
	}
	f.selected[category] = append(f.selected[category], tagID)
	return true
}

// Remove deselects a tag and reports whether the filter changed.
func (f *Filter) Remove(tagID string) bool {
	category := model.CategoryOf(tagID)
	ids := f.selected[category]
	i := slices.Index(ids, tagID)
	if i < 0 {
		return false
	}
	ids = slices.Delete(ids, i, i+1)
	if len(ids) == 0 {
		delete(f.selected, category)
	} else {
		f.selected[category] = ids
	}
	return true
}

// Empty reports whether no tag is selected.
func (f Filter) Empty() bool { return len(f.selected) == 0 }

// CategoryCount returns the number of categories with a selection.
func (f Filter) CategoryCount() int { return len(f.selected) }

// TagIDs returns the selected tags in sorted order.
func (f Filter) TagIDs() []string {
	var ids []string
	for _, v := range f.selected {
		ids = append(ids, v...)
	}
	slices.Sort(ids)
	return ids
}

// Matches reports whether a session carrying tags passes the filter.
func (f Filter) Matches(tags []string) bool {
	for _, ids := range f.selected {
		if !slices.ContainsFunc(ids, func(id string) bool { return slices.Contains(tags, id) }) {
			return false
		}
	}
	return true
}
