package handler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	json "github.com/goccy/go-json"

	"github.com/treffen/confsync/internal/ir"
	"github.com/treffen/confsync/internal/model"
	"github.com/treffen/confsync/internal/store"
)

// Document sections.
const (
	SectionRooms         = "rooms"
	SectionBlocks        = "blocks"
	SectionTags          = "tags"
	SectionSpeakers      = "speakers"
	SectionSessions      = "sessions"
	SectionVideos        = "video_library"
	SectionCards         = "cards"
	SectionAnnouncements = "announcements"
	SectionMap           = "map"
)

// Sections lists every section in emission order. Sessions come after the
// tables they reference.
var Sections = []string{
	SectionRooms,
	SectionBlocks,
	SectionTags,
	SectionSpeakers,
	SectionVideos,
	SectionSessions,
	SectionCards,
	SectionAnnouncements,
	SectionMap,
}

// StoreReader reads the stored rows a cycle compares against.
type StoreReader interface {
	ImportHashes(ctx context.Context, entity store.Entity) (map[string]string, error)
	References(ctx context.Context) (store.References, error)
}

// Set holds one table per section and remembers which sections the parsed
// documents carried. Only those sections are written back.
type Set struct {
	Rooms         *Table[model.Room]
	Blocks        *Table[model.Block]
	Tags          *Table[model.Tag]
	Speakers      *Table[model.Speaker]
	Sessions      *Table[model.Session]
	Videos        *Table[model.Video]
	Cards         *Table[model.Card]
	Announcements *Table[model.Announcement]
	Map           *Table[model.MapOverlay]

	present map[string]bool

	// stored resolves session references into sections no document carried.
	stored *Set

	logger *slog.Logger
}

// NewSet returns an empty Set. A nil logger discards output.
func NewSet(logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Set{
		Rooms:         newTable(SectionRooms, func(r model.Room) string { return r.ID }),
		Blocks:        newTable(SectionBlocks, func(b model.Block) string { return b.ID }),
		Tags:          newTable(SectionTags, func(t model.Tag) string { return t.ID }),
		Speakers:      newTable(SectionSpeakers, func(s model.Speaker) string { return s.ID }),
		Sessions:      newTable(SectionSessions, func(s model.Session) string { return s.ID }),
		Videos:        newTable(SectionVideos, func(v model.Video) string { return v.ID }),
		Cards:         newTable(SectionCards, func(c model.Card) string { return c.ID }),
		Announcements: newTable(SectionAnnouncements, func(a model.Announcement) string { return a.ID }),
		Map:           newTable(SectionMap, func(m model.MapOverlay) string { return m.ID }),
		present:       make(map[string]bool),
		logger:        logger,
	}
}

// sectionTable is the untyped view of a Table used for dispatch.
type sectionTable interface {
	Section() string
	Len() int
	parse(data []byte) error
	project() ir.Object
}

func (s *Set) tables() []sectionTable {
	return []sectionTable{
		s.Rooms, s.Blocks, s.Tags, s.Speakers, s.Videos, s.Sessions,
		s.Cards, s.Announcements, s.Map,
	}
}

// ParseDocument decodes a document object into the Set and returns the
// sections it contained. Unknown sections are skipped. On error the Set may
// hold part of the document; parse into a fresh Set and Merge on success.
func (s *Set) ParseDocument(data []byte) ([]string, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var seen []string
	for _, t := range s.tables() {
		raw, ok := sections[t.Section()]
		if !ok {
			continue
		}
		if err := t.parse(raw); err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		seen = append(seen, t.Section())
	}
	for name := range sections {
		if !slices.Contains(Sections, name) {
			s.logger.Debug("skipping unknown section", "section", name)
		}
	}
	for _, name := range seen {
		s.present[name] = true
	}
	return seen, nil
}

// Present reports whether any parsed document carried the section, even
// as an empty list.
func (s *Set) Present(section string) bool {
	return s.present[section]
}

// Sections returns the present sections in emission order.
func (s *Set) Sections() []string {
	var out []string
	for _, name := range Sections {
		if s.present[name] {
			out = append(out, name)
		}
	}
	return out
}

// Merge copies every entity of other into s. Entities of other replace
// entities of s sharing the same id. A section present in either is present
// in s.
func (s *Set) Merge(other *Set) {
	for name := range other.present {
		s.present[name] = true
	}
	s.Rooms.merge(other.Rooms)
	s.Blocks.merge(other.Blocks)
	s.Tags.merge(other.Tags)
	s.Speakers.merge(other.Speakers)
	s.Sessions.merge(other.Sessions)
	s.Videos.merge(other.Videos)
	s.Cards.merge(other.Cards)
	s.Announcements.merge(other.Announcements)
	s.Map.merge(other.Map)
}

// Projection returns {section: {id: entity IR}} for every present section.
// It is the input of the document digest, so an empty section and a missing
// one digest differently.
func (s *Set) Projection() ir.Object {
	obj := make(ir.Object)
	for _, t := range s.tables() {
		if s.present[t.Section()] || t.Len() > 0 {
			obj[t.Section()] = t.project()
		}
	}
	return obj
}

// Digest returns the canonical digest of the Set.
func (s *Set) Digest() (string, error) {
	return ir.DocumentDigest(s.Projection())
}

// Emission is the batch produced from a Set.
type Emission struct {
	Batch store.Batch

	// Touched lists the sections that emitted at least one mutation, in
	// emission order.
	Touched []string
}

// EmitOptions tunes Mutations.
type EmitOptions struct {
	// Updated stamps the rows that carry an update time.
	Updated int64

	// Rewrite upserts every speaker, session and video even when its stored
	// import hash is unchanged. Used after the stored data was invalidated.
	Rewrite bool
}

// Mutations emits the batch that makes the store match the Set, section by
// section. A section no document carried is left untouched. Within a present
// section, speakers, sessions and videos whose stored import hash is
// unchanged are skipped, and stored rows missing from the Set are deleted.
func (s *Set) Mutations(ctx context.Context, st StoreReader, opts EmitOptions) (Emission, error) {
	stored := map[store.Entity]map[string]string{}
	for _, e := range []store.Entity{store.EntitySpeaker, store.EntitySession, store.EntityVideo} {
		h, err := st.ImportHashes(ctx, e)
		if err != nil {
			return Emission{}, fmt.Errorf("read import hashes: %w", err)
		}
		stored[e] = h
	}

	if s.present[SectionSessions] &&
		(!s.present[SectionRooms] || !s.present[SectionTags] || !s.present[SectionSpeakers]) {
		refs, err := st.References(ctx)
		if err != nil {
			return Emission{}, fmt.Errorf("read references: %w", err)
		}
		s.useStored(refs)
	}

	var em Emission
	emit := func(section string, build func() store.Batch) {
		if !s.present[section] {
			return
		}
		batch := build()
		if len(batch) == 0 {
			return
		}
		em.Batch = append(em.Batch, batch...)
		em.Touched = append(em.Touched, section)
	}

	emit(SectionRooms, s.roomMutations)
	emit(SectionBlocks, s.blockMutations)
	emit(SectionTags, s.tagMutations)
	emit(SectionSpeakers, func() store.Batch { return s.speakerMutations(stored[store.EntitySpeaker], opts) })
	emit(SectionVideos, func() store.Batch { return s.videoMutations(stored[store.EntityVideo], opts) })
	emit(SectionSessions, func() store.Batch { return s.sessionMutations(stored[store.EntitySession], opts) })
	emit(SectionCards, s.cardMutations)
	emit(SectionAnnouncements, func() store.Batch { return s.announcementMutations(opts.Updated) })
	emit(SectionMap, s.mapMutations)

	s.logger.Debug("emitted mutations", "mutations", len(em.Batch), "sections", em.Touched)
	return em, nil
}

// unchanged reports whether a row can be skipped.
func unchanged(stored map[string]string, id, hash string, opts EmitOptions) bool {
	if opts.Rewrite {
		return false
	}
	prev, ok := stored[id]
	return ok && prev == hash
}

// deletions returns a delete for every stored key keep rejects.
func deletions(entity store.Entity, stored map[string]string, keep func(string) bool) store.Batch {
	var gone []string
	for id := range stored {
		if !keep(id) {
			gone = append(gone, id)
		}
	}
	slices.Sort(gone)

	batch := make(store.Batch, 0, len(gone))
	for _, id := range gone {
		batch = append(batch, store.Mutation{Entity: entity, Op: store.OpDelete, Key: id})
	}
	return batch
}

func (s *Set) useStored(refs store.References) {
	stored := NewSet(s.logger)
	for _, r := range refs.Rooms {
		stored.Rooms.Put(r)
	}
	for _, t := range refs.Tags {
		stored.Tags.Put(t)
	}
	for _, sp := range refs.Speakers {
		stored.Speakers.Put(sp)
	}
	s.stored = stored
}

// room, tag and speaker resolve a reference against the Set, or against the
// stored rows when the section is absent from the cycle.

func (s *Set) room(id string) bool {
	if s.stored != nil && !s.present[SectionRooms] {
		_, ok := s.stored.Rooms.Get(id)
		return ok
	}
	_, ok := s.Rooms.Get(id)
	return ok
}

func (s *Set) tag(id string) (model.Tag, bool) {
	if s.stored != nil && !s.present[SectionTags] {
		return s.stored.Tags.Get(id)
	}
	return s.Tags.Get(id)
}

func (s *Set) speaker(id string) (model.Speaker, bool) {
	if s.stored != nil && !s.present[SectionSpeakers] {
		return s.stored.Speakers.Get(id)
	}
	return s.Speakers.Get(id)
}
