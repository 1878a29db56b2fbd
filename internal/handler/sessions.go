package handler

import (
	"slices"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/treffen/confsync/internal/ir"
	"github.com/treffen/confsync/internal/model"
	"github.com/treffen/confsync/internal/store"
)

// resolvedSession is a session whose references were checked against the
// Set. Unknown rooms, tags, speakers and related sessions are dropped.
type resolvedSession struct {
	model.Session

	room         string
	tags         []string
	speakers     []string
	speakerNames string
	related      []string
	mainTag      string
	color        string
	hashtag      string
	start        int64
	end          int64
}

func (s *Set) resolveSession(sess model.Session) resolvedSession {
	r := resolvedSession{Session: sess}

	if sess.Room != "" {
		if s.room(sess.Room) {
			r.room = sess.Room
		} else {
			s.logger.Warn("session references unknown room", "session", sess.ID, "room", sess.Room)
		}
	}

	for _, id := range sess.Tags {
		if _, ok := s.tag(id); !ok {
			s.logger.Warn("session references unknown tag", "session", sess.ID, "tag", id)
			continue
		}
		if !slices.Contains(r.tags, id) {
			r.tags = append(r.tags, id)
		}
	}

	speakers := slices.Clone(sess.Speakers)
	slices.Sort(speakers)
	speakers = slices.Compact(speakers)
	var names []string
	for _, id := range speakers {
		sp, ok := s.speaker(id)
		if !ok {
			s.logger.Warn("session references unknown speaker", "session", sess.ID, "speaker", id)
			continue
		}
		r.speakers = append(r.speakers, id)
		names = append(names, sp.Name)
	}
	r.speakerNames = strings.Join(names, ", ")

	for _, id := range sess.RelatedSessionIDs() {
		if _, ok := s.Sessions.Get(id); !ok || id == sess.ID {
			s.logger.Debug("dropping related session", "session", sess.ID, "related", id)
			continue
		}
		if !slices.Contains(r.related, id) {
			r.related = append(r.related, id)
		}
	}

	r.color, r.hashtag = sess.Color, sess.Hashtag
	if main, ok := s.tag(sess.MainTag); ok {
		r.mainTag = main.ID
		if r.color == "" {
			r.color = main.Color
		}
		if r.hashtag == "" {
			r.hashtag = main.Hashtag
		}
	} else if sess.MainTag != "" {
		s.logger.Warn("session references unknown main tag", "session", sess.ID, "tag", sess.MainTag)
	}

	r.start = s.instantOrZero(SectionSessions, sess.ID, "startTimestamp", sess.StartTimestamp)
	r.end = s.instantOrZero(SectionSessions, sess.ID, "endTimestamp", sess.EndTimestamp)
	return r
}

// importHash covers the session and everything resolved from other
// sections, so a renamed speaker or a removed tag rewrites the session.
func (r resolvedSession) importHash() string {
	obj := r.IR()
	obj["tags"] = ir.Strings(r.tags)
	obj["speakers"] = ir.Strings(r.speakers)
	obj["speakerNames"] = ir.String(r.speakerNames)
	obj["relatedSessions"] = ir.Strings(r.related)
	obj["room"] = ir.String(r.room)
	obj["mainTag"] = ir.String(r.mainTag)
	obj["color"] = ir.String(r.color)
	obj["hashtag"] = ir.String(r.hashtag)
	return ir.MustEntityHash(obj)
}

func (s *Set) sessionMutations(stored map[string]string, opts EmitOptions) store.Batch {
	batch := deletions(store.EntitySession, stored, func(id string) bool {
		_, ok := s.Sessions.Get(id)
		return ok
	})

	for _, sess := range s.Sessions.Values() {
		r := s.resolveSession(sess)
		hash := r.importHash()
		if unchanged(stored, sess.ID, hash, opts) {
			continue
		}
		batch = append(batch, r.mutations(hash, opts.Updated)...)
	}
	return batch
}

func (r resolvedSession) mutations(hash string, updated int64) store.Batch {
	values := store.Values{
		"updated":                 updated,
		"session_start":           r.start,
		"session_end":             r.end,
		"session_title":           r.Title,
		"session_abstract":        r.Description,
		"session_hashtag":         r.hashtag,
		"session_url":             r.URL,
		"session_youtube_url":     r.YoutubeURL,
		"session_livestream":      r.IsLivestream,
		"session_featured":        r.IsFeatured,
		"session_tags":            store.JoinTags(r.tags),
		"session_speaker_names":   r.speakerNames,
		"session_main_tag":        r.mainTag,
		"session_color":           r.color,
		"session_captions_url":    r.CaptionsURL,
		"session_photo_url":       r.PhotoURL,
		"session_related_content": relatedContentJSON(r.RelatedContent),
		"session_import_hashcode": hash,
	}
	if r.room != "" {
		values["room_id"] = r.room
	} else {
		values["room_id"] = nil
	}

	batch := store.Batch{
		{Entity: store.EntitySession, Op: store.OpUpsert, Key: r.ID, Values: values},
		{Entity: store.EntitySessionTag, Op: store.OpDelete, Key: r.ID},
		{Entity: store.EntitySessionSpeaker, Op: store.OpDelete, Key: r.ID},
		{Entity: store.EntityRelatedSession, Op: store.OpDelete, Key: r.ID},
	}
	for _, tag := range r.tags {
		batch = append(batch, store.Mutation{
			Entity: store.EntitySessionTag, Op: store.OpInsert, Key: r.ID,
			Values: store.Values{"tag_id": tag},
		})
	}
	for _, sp := range r.speakers {
		batch = append(batch, store.Mutation{
			Entity: store.EntitySessionSpeaker, Op: store.OpInsert, Key: r.ID,
			Values: store.Values{"speaker_id": sp},
		})
	}
	for _, rel := range r.related {
		batch = append(batch, store.Mutation{
			Entity: store.EntityRelatedSession, Op: store.OpInsert, Key: r.ID,
			Values: store.Values{"related_session_id": rel},
		})
	}
	return batch
}

func relatedContentJSON(rc []model.RelatedContent) string {
	if len(rc) == 0 {
		return ""
	}
	data, err := json.Marshal(rc)
	if err != nil {
		return ""
	}
	return string(data)
}
