package handler

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treffen/confsync/internal/model"
	"github.com/treffen/confsync/internal/store"
)

const conferenceDoc = `{
  "rooms": [{"id": "r1", "name": "Stage 1", "floor": "1"}],
  "tags": [
    {"tag": "TOPIC_ANDROID", "category": "TOPIC", "name": "Android", "order_in_category": 1},
    {"tag": "TYPE_SESSIONS", "category": "TYPE", "name": "Sessions", "color": "#ff0000", "hashtag": "sessions"}
  ],
  "speakers": [{"id": "p1", "name": "Ada", "company": "Analytical"}],
  "sessions": [{
    "id": "s1",
    "title": "Engines",
    "description": "Difference and analytical",
    "startTimestamp": "2016-05-18T17:00:00Z",
    "endTimestamp": "2016-05-18T18:00:00Z",
    "room": "r1",
    "tags": ["TYPE_SESSIONS", "TOPIC_ANDROID"],
    "mainTag": "TYPE_SESSIONS",
    "speakers": ["p1"],
    "isLivestream": true
  }],
  "cards": [{"id": "c1", "title": "Welcome", "validFrom": "2016-05-18T08:00:00Z", "validUntil": "2016-05-20T08:00:00Z"}]
}`

type fakeHashes map[store.Entity]map[string]string

func (f fakeHashes) ImportHashes(_ context.Context, e store.Entity) (map[string]string, error) {
	return f[e], nil
}

func (f fakeHashes) References(context.Context) (store.References, error) {
	return store.References{}, nil
}

func parseSet(t *testing.T, docs ...string) *Set {
	t.Helper()
	set := NewSet(nil)
	for _, doc := range docs {
		_, err := set.ParseDocument([]byte(doc))
		require.NoError(t, err)
	}
	return set
}

func mutationsFor(batch store.Batch, entity store.Entity) store.Batch {
	var out store.Batch
	for _, m := range batch {
		if m.Entity == entity {
			out = append(out, m)
		}
	}
	return out
}

func TestParseDocument_ReturnsSections(t *testing.T) {
	set := NewSet(nil)
	sections, err := set.ParseDocument([]byte(conferenceDoc))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{SectionRooms, SectionTags, SectionSpeakers, SectionSessions, SectionCards}, sections)
	assert.Equal(t, 1, set.Sessions.Len())
	assert.Equal(t, 2, set.Tags.Len())
}

func TestParseDocument_LastWriteWins(t *testing.T) {
	set := parseSet(t, `{"rooms": [{"id": "r1", "name": "First"}, {"id": "r1", "name": "Second"}]}`)

	require.Equal(t, 1, set.Rooms.Len())
	r, ok := set.Rooms.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "Second", r.Name)
}

func TestParseDocument_SkipsUnknownSections(t *testing.T) {
	set := NewSet(nil)
	sections, err := set.ParseDocument([]byte(`{"experts": [{"id": "x"}], "rooms": []}`))
	require.NoError(t, err)
	assert.Equal(t, []string{SectionRooms}, sections)
}

func TestParseDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not an object", `[1, 2]`},
		{"section not an array", `{"rooms": {"id": "r1"}}`},
		{"element without id", `{"speakers": [{"name": "Nobody"}]}`},
		{"truncated", `{"rooms": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSet(nil).ParseDocument([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestMerge_LaterDocumentOverrides(t *testing.T) {
	base := parseSet(t, conferenceDoc)
	incr := parseSet(t, `{"sessions": [{"id": "s1", "title": "Engines, revised", "tags": []}], "rooms": [{"id": "r2"}]}`)

	base.Merge(incr)

	s, _ := base.Sessions.Get("s1")
	assert.Equal(t, "Engines, revised", s.Title)
	assert.Equal(t, []string{"r1", "r2"}, base.Rooms.IDs())
}

func TestDigest_Normalization(t *testing.T) {
	a := parseSet(t, `{"sessions": [{"id": "s1", "title": "T", "speakers": ["p2", "p1"], "tags": ["A", "B"]}]}`)
	b := parseSet(t, `{"sessions": [{"tags": ["A", "B"], "speakers": ["p1", "p2", "p1"], "title": "T", "id": "s1"}]}`)
	c := parseSet(t, `{"sessions": [{"id": "s1", "title": "T", "speakers": ["p1", "p2"], "tags": ["B", "A"]}]}`)

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	dc, err := c.Digest()
	require.NoError(t, err)

	assert.Equal(t, da, db, "key order and speaker order must not matter")
	assert.NotEqual(t, da, dc, "tag order is significant")
}

func TestDigest_EmptySectionDiffersFromMissing(t *testing.T) {
	// An empty section clears its table while a missing one leaves it alone,
	// so the two must not short-circuit each other.
	a := parseSet(t, `{"rooms": [{"id": "r1"}], "cards": []}`)
	b := parseSet(t, `{"rooms": [{"id": "r1"}]}`)

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestMerge_UnionsPresentSections(t *testing.T) {
	base := parseSet(t, `{"rooms": [{"id": "r1"}]}`)
	base.Merge(parseSet(t, `{"cards": []}`))

	assert.True(t, base.Present(SectionRooms))
	assert.True(t, base.Present(SectionCards))
	assert.False(t, base.Present(SectionSessions))
	assert.Equal(t, []string{SectionRooms, SectionCards}, base.Sections())
}

func TestMutations_ReferenceTablesAreRefilled(t *testing.T) {
	set := parseSet(t, conferenceDoc)
	em, err := set.Mutations(context.Background(), fakeHashes{}, EmitOptions{Updated: 1})
	require.NoError(t, err)

	rooms := mutationsFor(em.Batch, store.EntityRoom)
	require.Len(t, rooms, 2)
	assert.Equal(t, store.OpDeleteAll, rooms[0].Op)
	assert.Equal(t, store.OpInsert, rooms[1].Op)
	assert.Equal(t, "r1", rooms[1].Key)

	assert.Empty(t, mutationsFor(em.Batch, store.EntityBlock), "absent section")

	cleared := parseSet(t, `{"blocks": []}`)
	em, err = cleared.Mutations(context.Background(), fakeHashes{}, EmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, store.Batch{{Entity: store.EntityBlock, Op: store.OpDeleteAll}}, em.Batch)

	assert.Contains(t, em.Touched, SectionRooms)
	assert.Contains(t, em.Touched, SectionSessions)
}

func TestMutations_CardWithInvalidWindowIsKept(t *testing.T) {
	var logs bytes.Buffer
	set := NewSet(slog.New(slog.NewTextHandler(&logs, nil)))
	_, err := set.ParseDocument([]byte(`{"cards": [
		{"id": "bad", "title": "Broken", "validFrom": "next tuesday", "validUntil": "never"},
		{"id": "good", "title": "Fine", "validFrom": "2016-05-18T08:00:00Z", "validUntil": "2016-05-20T08:00:00Z"}
	]}`))
	require.NoError(t, err)

	em, err := set.Mutations(context.Background(), fakeHashes{}, EmitOptions{})
	require.NoError(t, err)

	cards := mutationsFor(em.Batch, store.EntityCard)
	require.Len(t, cards, 3)
	bad := cards[1]
	assert.Equal(t, "bad", bad.Key)
	assert.Equal(t, model.NeverDisplayedStart, bad.Values["display_start_date"])
	assert.Equal(t, model.NeverDisplayedEnd, bad.Values["display_end_date"])

	good := cards[2]
	start, _ := model.ParseInstant("2016-05-18T08:00:00Z")
	assert.Equal(t, start, good.Values["display_start_date"])

	assert.Contains(t, logs.String(), "invalid display start date")
	assert.Contains(t, logs.String(), "level=ERROR")
}

func TestMutations_SkipsUnchangedRows(t *testing.T) {
	set := parseSet(t, conferenceDoc)
	first, err := set.Mutations(context.Background(), fakeHashes{}, EmitOptions{})
	require.NoError(t, err)

	stored := fakeHashes{
		store.EntitySpeaker: {"p1": mutationsFor(first.Batch, store.EntitySpeaker)[0].Values["speaker_import_hashcode"].(string)},
		store.EntitySession: {"s1": mutationsFor(first.Batch, store.EntitySession)[0].Values["session_import_hashcode"].(string)},
	}

	second, err := set.Mutations(context.Background(), stored, EmitOptions{})
	require.NoError(t, err)
	assert.Empty(t, mutationsFor(second.Batch, store.EntitySpeaker))
	assert.Empty(t, mutationsFor(second.Batch, store.EntitySession))
	assert.NotContains(t, second.Touched, SectionSessions)

	rewrite, err := set.Mutations(context.Background(), stored, EmitOptions{Rewrite: true})
	require.NoError(t, err)
	assert.Len(t, mutationsFor(rewrite.Batch, store.EntitySession), 1)
}

func TestMutations_DeletesRowsMissingFromSet(t *testing.T) {
	set := parseSet(t, conferenceDoc, `{"video_library": []}`)
	stored := fakeHashes{
		store.EntitySession: {"gone": "h", "s1": "stale"},
		store.EntityVideo:   {"v-old": "h"},
	}

	em, err := set.Mutations(context.Background(), stored, EmitOptions{})
	require.NoError(t, err)

	sessions := mutationsFor(em.Batch, store.EntitySession)
	require.Len(t, sessions, 2)
	assert.Equal(t, store.Mutation{Entity: store.EntitySession, Op: store.OpDelete, Key: "gone"}, sessions[0])
	assert.Equal(t, store.OpUpsert, sessions[1].Op)

	videos := mutationsFor(em.Batch, store.EntityVideo)
	require.Len(t, videos, 1)
	assert.Equal(t, store.OpDelete, videos[0].Op)
}

func TestMutations_AbsentSectionsAreUntouched(t *testing.T) {
	set := parseSet(t, `{"cards": []}`)
	stored := fakeHashes{
		store.EntitySpeaker: {"p1": "h"},
		store.EntitySession: {"s1": "h", "s2": "h"},
		store.EntityVideo:   {"v1": "h"},
	}

	em, err := set.Mutations(context.Background(), stored, EmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, store.Batch{{Entity: store.EntityCard, Op: store.OpDeleteAll}}, em.Batch)
	assert.Equal(t, []string{SectionCards}, em.Touched)
}

func TestResolveSession_DropsUnknownReferences(t *testing.T) {
	set := parseSet(t, conferenceDoc, `{"sessions": [{
		"id": "s2", "room": "nowhere", "tags": ["TOPIC_ANDROID", "TOPIC_GONE", "TOPIC_ANDROID"],
		"speakers": ["p1", "ghost"], "mainTag": "TYPE_GONE",
		"relatedContent": [{"id": "s1", "title": "Engines"}, {"id": "s404", "title": "?"}]
	}]}`)

	s2, _ := set.Sessions.Get("s2")
	r := set.resolveSession(s2)
	assert.Empty(t, r.room)
	assert.Equal(t, []string{"TOPIC_ANDROID"}, r.tags)
	assert.Equal(t, []string{"p1"}, r.speakers)
	assert.Equal(t, "Ada", r.speakerNames)
	assert.Equal(t, []string{"s1"}, r.related)
	assert.Empty(t, r.mainTag)
	assert.Zero(t, r.start, "missing start time")
}

func TestResolveSession_DerivesFromMainTag(t *testing.T) {
	set := parseSet(t, conferenceDoc)
	s1, _ := set.Sessions.Get("s1")

	r := set.resolveSession(s1)
	assert.Equal(t, "TYPE_SESSIONS", r.mainTag)
	assert.Equal(t, "#ff0000", r.color)
	assert.Equal(t, "sessions", r.hashtag)
	assert.Equal(t, []string{"TYPE_SESSIONS", "TOPIC_ANDROID"}, r.tags)
}

func TestImportHash_FollowsSpeakerRename(t *testing.T) {
	set := parseSet(t, conferenceDoc)
	s1, _ := set.Sessions.Get("s1")
	before := set.resolveSession(s1).importHash()

	set.Merge(parseSet(t, `{"speakers": [{"id": "p1", "name": "Ada Lovelace"}]}`))
	after := set.resolveSession(s1).importHash()

	assert.NotEqual(t, before, after)
}

func TestMutations_ApplyToStore(t *testing.T) {
	ctx := context.Background()
	st, _, err := store.Open(ctx, filepath.Join(t.TempDir(), "h.db"), store.Options{})
	require.NoError(t, err)
	defer st.Close()

	set := parseSet(t, conferenceDoc)
	em, err := set.Mutations(ctx, st, EmitOptions{Updated: 42})
	require.NoError(t, err)
	_, err = st.ApplyBatch(ctx, em.Batch)
	require.NoError(t, err)

	for table, want := range map[string]int{
		store.TableSessions: 1, store.TableRooms: 1, store.TableTags: 2, store.TableSpeakers: 1,
		store.TableSessionsTags: 2, store.TableSessionsSpeakers: 1, store.TableCards: 1,
	} {
		n, err := st.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	got, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RoomID)
	assert.Equal(t, []string{"TYPE_SESSIONS", "TOPIC_ANDROID"}, got.Tags)
	assert.Equal(t, "Ada", got.SpeakerNames)
	assert.True(t, got.Livestream)
	assert.Equal(t, int64(42), got.Updated)

	// Second pass over the same store: only reference tables churn.
	em, err = set.Mutations(ctx, st, EmitOptions{Updated: 43})
	require.NoError(t, err)
	assert.Empty(t, mutationsFor(em.Batch, store.EntitySession))
	_, err = st.ApplyBatch(ctx, em.Batch)
	require.NoError(t, err)
}

func TestMutations_ResolvesAgainstStoredReferences(t *testing.T) {
	ctx := context.Background()
	st, _, err := store.Open(ctx, filepath.Join(t.TempDir(), "h.db"), store.Options{})
	require.NoError(t, err)
	defer st.Close()

	em, err := parseSet(t, conferenceDoc).Mutations(ctx, st, EmitOptions{Updated: 1})
	require.NoError(t, err)
	_, err = st.ApplyBatch(ctx, em.Batch)
	require.NoError(t, err)

	// Only sessions: rooms, tags and speakers come from the store.
	incr := parseSet(t, `{"sessions": [{
		"id": "s1", "title": "Engines, revised", "room": "r1",
		"tags": ["TYPE_SESSIONS", "TOPIC_ANDROID"], "mainTag": "TYPE_SESSIONS", "speakers": ["p1"]
	}]}`)
	em, err = incr.Mutations(ctx, st, EmitOptions{Updated: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{SectionSessions}, em.Touched)
	_, err = st.ApplyBatch(ctx, em.Batch)
	require.NoError(t, err)

	got, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Engines, revised", got.Title)
	assert.Equal(t, "r1", got.RoomID)
	assert.Equal(t, []string{"TYPE_SESSIONS", "TOPIC_ANDROID"}, got.Tags)
	assert.Equal(t, "Ada", got.SpeakerNames)

	for table, want := range map[string]int{
		store.TableRooms: 1, store.TableTags: 2, store.TableSpeakers: 1, store.TableCards: 1,
	} {
		n, err := st.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}
}
