package handler

import (
	"github.com/treffen/confsync/internal/model"
	"github.com/treffen/confsync/internal/store"
)

// Reference tables are small, so a cycle carrying one empties and refills it.

func (s *Set) roomMutations() store.Batch {
	batch := store.Batch{{Entity: store.EntityRoom, Op: store.OpDeleteAll}}
	for _, r := range s.Rooms.Values() {
		batch = append(batch, store.Mutation{
			Entity: store.EntityRoom, Op: store.OpInsert, Key: r.ID,
			Values: store.Values{"room_name": r.Name, "room_floor": r.Floor},
		})
	}
	return batch
}

func (s *Set) blockMutations() store.Batch {
	batch := store.Batch{{Entity: store.EntityBlock, Op: store.OpDeleteAll}}
	for _, b := range s.Blocks.Values() {
		batch = append(batch, store.Mutation{
			Entity: store.EntityBlock, Op: store.OpInsert, Key: b.ID,
			Values: store.Values{
				"block_title":    b.Title,
				"block_subtitle": b.Subtitle,
				"block_type":     b.Type,
				"block_kind":     b.Kind,
				"block_start":    s.instantOrZero(SectionBlocks, b.ID, "start", b.Start),
				"block_end":      s.instantOrZero(SectionBlocks, b.ID, "end", b.End),
			},
		})
	}
	return batch
}

func (s *Set) tagMutations() store.Batch {
	batch := store.Batch{{Entity: store.EntityTag, Op: store.OpDeleteAll}}
	for _, t := range s.Tags.Values() {
		category := t.Category
		if category == "" {
			category = model.CategoryOf(t.ID)
		}
		if !category.Valid() {
			s.logger.Warn("tag has unknown category", "tag", t.ID, "category", category)
		}
		batch = append(batch, store.Mutation{
			Entity: store.EntityTag, Op: store.OpInsert, Key: t.ID,
			Values: store.Values{
				"tag_category":          string(category),
				"tag_name":              t.Name,
				"tag_order_in_category": t.OrderInCategory,
				"tag_color":             t.Color,
				"tag_abstract":          t.Abstract,
				"tag_photo_url":         t.PhotoURL,
			},
		})
	}
	return batch
}

// cardMutations never drops a card over a bad display window. An unparseable
// start means the card is never shown; an unparseable end means it already
// expired.
func (s *Set) cardMutations() store.Batch {
	batch := store.Batch{{Entity: store.EntityCard, Op: store.OpDeleteAll}}
	for _, c := range s.Cards.Values() {
		start, err := model.ParseInstant(c.ValidFrom)
		if err != nil {
			s.logger.Error("card time disabled, invalid display start date",
				"card", c.ID, "title", c.Title, "valid_from", c.ValidFrom, "error", err)
			start = model.NeverDisplayedStart
		}
		end, err := model.ParseInstant(c.ValidUntil)
		if err != nil {
			s.logger.Error("card time disabled, invalid display end date",
				"card", c.ID, "title", c.Title, "valid_until", c.ValidUntil, "error", err)
			end = model.NeverDisplayedEnd
		}
		batch = append(batch, store.Mutation{
			Entity: store.EntityCard, Op: store.OpInsert, Key: c.ID,
			Values: store.Values{
				"title":              c.Title,
				"message":            c.ShortMessage,
				"action_color":       c.ActionColor,
				"action_text":        c.ActionText,
				"action_url":         c.ActionURL,
				"action_type":        c.ActionType,
				"action_extra":       c.ActionExtra,
				"background_color":   c.BackgroundColor,
				"text_color":         c.TextColor,
				"display_start_date": start,
				"display_end_date":   end,
			},
		})
	}
	return batch
}

func (s *Set) announcementMutations(updated int64) store.Batch {
	batch := store.Batch{{Entity: store.EntityAnnouncement, Op: store.OpDeleteAll}}
	for _, a := range s.Announcements.Values() {
		batch = append(batch, store.Mutation{
			Entity: store.EntityAnnouncement, Op: store.OpInsert, Key: a.ID,
			Values: store.Values{
				"updated":                    updated,
				"announcement_title":         a.Title,
				"announcement_activity_json": a.ActivityJSON,
				"announcement_url":           a.URL,
				"announcement_date":          s.instantOrZero(SectionAnnouncements, a.ID, "date", a.Date),
			},
		})
	}
	return batch
}

func (s *Set) mapMutations() store.Batch {
	batch := store.Batch{{Entity: store.EntityMap, Op: store.OpDeleteAll}}
	for _, m := range s.Map.Values() {
		batch = append(batch, store.Mutation{
			Entity: store.EntityMap, Op: store.OpInsert, Key: m.ID,
			Values: store.Values{"geojson": m.GeoJSON},
		})
	}
	return batch
}

// instantOrZero parses a timestamp field, logging and returning 0 when it
// cannot be parsed.
func (s *Set) instantOrZero(section, id, field, value string) int64 {
	ms, err := model.ParseInstant(value)
	if err != nil {
		s.logger.Warn("unparseable timestamp", "section", section, "id", id, "field", field, "error", err)
		return 0
	}
	return ms
}
