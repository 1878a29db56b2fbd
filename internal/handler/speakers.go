package handler

import (
	"github.com/treffen/confsync/internal/ir"
	"github.com/treffen/confsync/internal/store"
)

func (s *Set) speakerMutations(stored map[string]string, opts EmitOptions) store.Batch {
	batch := deletions(store.EntitySpeaker, stored, func(id string) bool {
		_, ok := s.Speakers.Get(id)
		return ok
	})
	for _, sp := range s.Speakers.Values() {
		hash := ir.MustEntityHash(sp.IR())
		if unchanged(stored, sp.ID, hash, opts) {
			continue
		}
		batch = append(batch, store.Mutation{
			Entity: store.EntitySpeaker, Op: store.OpUpsert, Key: sp.ID,
			Values: store.Values{
				"updated":                 opts.Updated,
				"speaker_name":            sp.Name,
				"speaker_abstract":        sp.Bio,
				"speaker_company":         sp.Company,
				"speaker_image_url":       sp.ThumbnailURL,
				"speaker_plusone_url":     sp.PlusoneURL,
				"speaker_twitter_url":     sp.TwitterURL,
				"speaker_import_hashcode": hash,
			},
		})
	}
	return batch
}
