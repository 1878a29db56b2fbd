package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treffen/confsync/internal/ir"
)

func TestParseTagCategory(t *testing.T) {
	for _, s := range []string{"TYPE", "TRACK", "TOPIC", "THEME"} {
		c, err := ParseTagCategory(s)
		require.NoError(t, err)
		assert.True(t, c.Valid())
	}

	_, err := ParseTagCategory("FLAG")
	assert.Error(t, err)
	assert.False(t, TagCategory("track").Valid())
}

func TestTagIDConvention(t *testing.T) {
	id := TagID(CategoryTrack, "ANDROID")
	assert.Equal(t, "TRACK_ANDROID", id)
	assert.Equal(t, CategoryTrack, CategoryOf(id))
	assert.Equal(t, TagCategory(""), CategoryOf("NOCATEGORY"))
}

func TestParseReservationStatus(t *testing.T) {
	s, err := ParseReservationStatus(2)
	require.NoError(t, err)
	assert.Equal(t, ReservationWaitlisted, s)
	assert.Equal(t, "waitlisted", s.String())

	_, err = ParseReservationStatus(7)
	assert.Error(t, err)
}

func TestParseInstant(t *testing.T) {
	ms, err := ParseInstant("2017-05-17T16:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1495036800000), ms)
	assert.Equal(t, "2017-05-17T16:00:00Z", FormatInstant(ms))

	_, err = ParseInstant("next tuesday")
	assert.Error(t, err)
	_, err = ParseInstant("")
	assert.Error(t, err)
}

func TestSessionIRSpeakerOrderIrrelevant(t *testing.T) {
	a := Session{ID: "s1", Speakers: []string{"p1", "p2"}, Tags: []string{"TRACK_ANDROID"}}
	b := Session{ID: "s1", Speakers: []string{"p2", "p1"}, Tags: []string{"TRACK_ANDROID"}}

	assert.Equal(t, ir.MustEntityHash(a.IR()), ir.MustEntityHash(b.IR()))
}

func TestSessionIRTagOrderRelevant(t *testing.T) {
	a := Session{ID: "s1", Tags: []string{"THEME_X", "TRACK_ANDROID"}}
	b := Session{ID: "s1", Tags: []string{"TRACK_ANDROID", "THEME_X"}}

	assert.NotEqual(t, ir.MustEntityHash(a.IR()), ir.MustEntityHash(b.IR()))
}

func TestSessionIROmitsEmptyFields(t *testing.T) {
	obj := Session{ID: "s1"}.IR()
	_, hasTitle := obj["title"]
	assert.False(t, hasTitle)
	assert.Equal(t, ir.Array{}, obj["tags"])
}

func TestRelatedSessionIDs(t *testing.T) {
	s := Session{RelatedContent: []RelatedContent{{ID: "s2", Title: "B"}, {ID: "s3", Title: "C"}}}
	assert.Equal(t, []string{"s2", "s3"}, s.RelatedSessionIDs())
}
