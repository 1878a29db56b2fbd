package handler

import (
	"github.com/treffen/confsync/internal/ir"
	"github.com/treffen/confsync/internal/store"
)

func (s *Set) videoMutations(stored map[string]string, opts EmitOptions) store.Batch {
	batch := deletions(store.EntityVideo, stored, func(id string) bool {
		_, ok := s.Videos.Get(id)
		return ok
	})
	for _, v := range s.Videos.Values() {
		hash := ir.MustEntityHash(v.IR())
		if unchanged(stored, v.ID, hash, opts) {
			continue
		}
		batch = append(batch, store.Mutation{
			Entity: store.EntityVideo, Op: store.OpUpsert, Key: v.ID,
			Values: store.Values{
				"video_year":            v.Year,
				"video_title":           v.Title,
				"video_desc":            v.Desc,
				"video_vid":             v.VID,
				"video_topic":           v.Topic,
				"video_speakers":        v.Speakers,
				"video_thumbnail_url":   v.ThumbnailURL,
				"video_import_hashcode": hash,
			},
		})
	}
	return batch
}
