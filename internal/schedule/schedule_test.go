package schedule

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treffen/confsync/internal/conference"
	"github.com/treffen/confsync/internal/model"
	"github.com/treffen/confsync/internal/settings"
	"github.com/treffen/confsync/internal/store"
	"github.com/treffen/confsync/internal/testutil"
)

func at(t *testing.T, s string) int64 {
	t.Helper()
	ms, err := model.ParseInstant(s)
	require.NoError(t, err)
	return ms
}

func agenda() *testutil.DocBuilder {
	session := func(id, title, start, end string, tags ...string) model.Session {
		return model.Session{ID: id, Title: title, StartTimestamp: start, EndTimestamp: end, Room: "r1", Tags: tags}
	}
	s1 := session("s1", "Android internals", "2016-05-18T10:00:00Z", "2016-05-18T11:00:00Z", "TYPE_SESSION", "TRACK_ANDROID")
	s1.Speakers = []string{"p1"}

	return testutil.NewDoc().
		Room(model.Room{ID: "r1", Name: "Hall"}).
		Tag(model.Tag{ID: "TYPE_SESSION", Category: model.CategoryType, Name: "SESSION"}).
		Tag(model.Tag{ID: "TYPE_CODELAB", Category: model.CategoryType, Name: "CODELAB"}).
		Tag(model.Tag{ID: "TRACK_ANDROID", Category: model.CategoryTrack, Name: "ANDROID"}).
		Tag(model.Tag{ID: "TRACK_WEB", Category: model.CategoryTrack, Name: "WEB"}).
		Speaker(model.Speaker{ID: "p1", Name: "Grace Hopper"}).
		Session(s1).
		Session(session("s2", "Progressive web apps", "2016-05-18T10:30:00Z", "2016-05-18T11:30:00Z", "TYPE_SESSION", "TRACK_WEB")).
		Session(session("s3", "Codelab: Android basics", "2016-05-18T12:00:00Z", "2016-05-18T13:00:00Z", "TYPE_CODELAB", "TRACK_ANDROID")).
		Session(session("s4", "To be announced", "", "", "TYPE_SESSION"))
}

type fixture struct {
	store  *store.Store
	state  *settings.Memory
	helper *Helper
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db, _, err := store.Open(ctx, filepath.Join(t.TempDir(), "schedule.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	state := settings.NewMemory(settings.State{Account: "ada@example.com"})
	_, err = conference.New(db, state, conference.Options{}).
		Apply(ctx, []conference.Document{{Name: "agenda.json", Data: agenda().JSON()}}, "v1")
	require.NoError(t, err)
	_, err = db.UpdateSearchIndex(ctx)
	require.NoError(t, err)

	return fixture{store: db, state: state, helper: NewHelper(db, state, nil)}
}

func (f fixture) star(t *testing.T, account string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.store.SetInSchedule(context.Background(),
			model.MySchedule{SessionID: id, Account: account, InSchedule: true}))
	}
}

func sessionIDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.SessionID
	}
	return ids
}

func TestLoad_AllItemsExcludesUnscheduled(t *testing.T) {
	f := newFixture(t)

	items, err := f.helper.Load(context.Background(), AllItems{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, sessionIDs(items))
}

func TestLoad_AllItemsWindow(t *testing.T) {
	f := newFixture(t)

	items, err := f.helper.Load(context.Background(), AllItems{
		Start: at(t, "2016-05-18T10:15:00Z"),
		End:   at(t, "2016-05-18T12:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s3"}, sessionIDs(items))
}

func TestLoad_TagFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tags []string
		want []string
	}{
		{"single tag", []string{"TRACK_ANDROID"}, []string{"s1", "s3"}},
		{"or within category", []string{"TRACK_ANDROID", "TRACK_WEB"}, []string{"s1", "s2", "s3"}},
		{"and across categories", []string{"TRACK_ANDROID", "TYPE_CODELAB"}, []string{"s3"}},
		{"no match", []string{"TRACK_WEB", "TYPE_CODELAB"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := f.helper.Load(ctx, AllItems{Filter: NewFilter(tt.tags...)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sessionIDs(items))
		})
	}
}

func TestLoad_StarredItemsFlagsConflicts(t *testing.T) {
	f := newFixture(t)
	f.star(t, "ada@example.com", "s1", "s2", "s3", "s4")
	f.star(t, "someone@example.com", "s1")

	items, err := f.helper.Load(context.Background(), StarredItems{})
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s2", "s3"}, sessionIDs(items))

	assert.False(t, items[0].ConflictsWithPrevious)
	assert.True(t, items[1].ConflictsWithPrevious)
	assert.False(t, items[2].ConflictsWithPrevious)
	for _, it := range items {
		assert.True(t, it.InSchedule)
	}
}

func TestLoad_AllItemsOnlyFlagsBookmarked(t *testing.T) {
	f := newFixture(t)
	f.star(t, "ada@example.com", "s2")

	items, err := f.helper.Load(context.Background(), AllItems{})
	require.NoError(t, err)
	for _, it := range items {
		assert.False(t, it.ConflictsWithPrevious, it.SessionID)
	}
	assert.True(t, items[1].InSchedule)
	assert.False(t, items[0].InSchedule)
}

func TestLoad_MyScheduleKeepsUnscheduled(t *testing.T) {
	f := newFixture(t)
	f.star(t, "ada@example.com", "s3", "s4")

	items, err := f.helper.Load(context.Background(), MySchedule{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s4", "s3"}, sessionIDs(items))
}

func TestLoad_FollowsActiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.star(t, "ada@example.com", "s1")

	require.NoError(t, f.state.Update(ctx, func(st *settings.State) { st.Account = "other@example.com" }))

	items, err := f.helper.Load(ctx, MySchedule{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoad_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items, err := f.helper.Load(ctx, Search{Term: "hopper"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sessionIDs(items))

	items, err = f.helper.Load(ctx, Search{Term: "ANDROID"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s3"}, sessionIDs(items))

	items, err = f.helper.Load(ctx, Search{Term: "  "})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFilter(t *testing.T) {
	var f Filter
	assert.True(t, f.Empty())
	assert.True(t, f.Matches(nil))

	assert.True(t, f.Add("TRACK_WEB"))
	assert.False(t, f.Add("TRACK_WEB"))
	assert.False(t, f.Add("bogus"))
	assert.True(t, f.Add("TYPE_SESSION"))
	assert.Equal(t, 2, f.CategoryCount())
	assert.Equal(t, []string{"TRACK_WEB", "TYPE_SESSION"}, f.TagIDs())

	assert.True(t, f.Remove("TRACK_WEB"))
	assert.False(t, f.Remove("TRACK_WEB"))
	assert.Equal(t, 1, f.CategoryCount())
}
