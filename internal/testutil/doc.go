package testutil

import (
	json "github.com/goccy/go-json"

	"github.com/treffen/confsync/internal/model"
)

// DocBuilder assembles a conference document for tests.
//
//	data := testutil.NewDoc().
//		Room(model.Room{ID: "r1"}).
//		Session(model.Session{ID: "s1", Room: "r1"}).
//		JSON()
type DocBuilder struct {
	sections map[string][]any
}

// NewDoc returns an empty document builder.
func NewDoc() *DocBuilder {
	return &DocBuilder{sections: make(map[string][]any)}
}

func (b *DocBuilder) add(section string, v any) *DocBuilder {
	b.sections[section] = append(b.sections[section], v)
	return b
}

// Empty declares a section with no elements.
func (b *DocBuilder) Empty(section string) *DocBuilder {
	if _, ok := b.sections[section]; !ok {
		b.sections[section] = []any{}
	}
	return b
}

func (b *DocBuilder) Room(r model.Room) *DocBuilder                 { return b.add("rooms", r) }
func (b *DocBuilder) Block(v model.Block) *DocBuilder               { return b.add("blocks", v) }
func (b *DocBuilder) Tag(t model.Tag) *DocBuilder                   { return b.add("tags", t) }
func (b *DocBuilder) Speaker(s model.Speaker) *DocBuilder           { return b.add("speakers", s) }
func (b *DocBuilder) Session(s model.Session) *DocBuilder           { return b.add("sessions", s) }
func (b *DocBuilder) Video(v model.Video) *DocBuilder               { return b.add("video_library", v) }
func (b *DocBuilder) Card(c model.Card) *DocBuilder                 { return b.add("cards", c) }
func (b *DocBuilder) Announcement(a model.Announcement) *DocBuilder { return b.add("announcements", a) }

// JSON encodes the document. Panics on encoding failure, which only a
// broken model type could cause.
func (b *DocBuilder) JSON() []byte {
	data, err := json.Marshal(b.sections)
	if err != nil {
		panic(err)
	}
	return data
}

// Scenario returns the canonical end-to-end fixture: session s1 in room r1
// tagged TOPIC_T1 and presented by p1.
func Scenario() *DocBuilder {
	return NewDoc().
		Room(model.Room{ID: "r1", Name: "Room One"}).
		Tag(model.Tag{ID: "TOPIC_T1", Category: model.CategoryTopic, Name: "T1"}).
		Speaker(model.Speaker{ID: "p1", Name: "Speaker One"}).
		Session(model.Session{
			ID:             "s1",
			Title:          "Original title",
			StartTimestamp: "2016-05-18T17:00:00Z",
			EndTimestamp:   "2016-05-18T18:00:00Z",
			Room:           "r1",
			Tags:           []string{"TOPIC_T1"},
			Speakers:       []string{"p1"},
		})
}
