// Package extractor converts a vendor CMS export into the conference
// document the client reconciles. Extraction is a batch job: it buffers the
// whole export, resolves references between records, and drops tags and
// speakers that no emitted session uses. The same export and config always
// produce the same bytes.
package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/treffen/confsync/internal/model"
)

// ErrExtractionOrder is returned when a step runs before the steps whose
// results it resolves references against.
var ErrExtractionOrder = errors.New("extraction steps out of order")

// Options configures an Extractor.
type Options struct {
	// Transformer rewrites human-readable text. Nil leaves text as is.
	Transformer Transformer

	// Now decides whether the conference is over. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Document is the extractor output, in the section layout the client
// reads.
type Document struct {
	Rooms        []model.Room    `json:"rooms"`
	VideoLibrary []model.Video   `json:"video_library"`
	Sessions     []model.Session `json:"sessions"`
	Speakers     []model.Speaker `json:"speakers"`
	Tags         []model.Tag     `json:"tags"`
}

// Encode renders the document as indented JSON with a trailing newline.
func (d Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}

// Extractor runs one extraction at a time. The Extract* steps share state
// and must run in the order Extract runs them.
type Extractor struct {
	cfg    Config
	text   Transformer
	now    func() time.Time
	logger *slog.Logger

	speakers     map[string]model.Speaker
	tagOf        map[string]string // vendor category id -> tag id
	tags         map[string]model.Tag
	mainCategory model.TagCategory
	videos       map[string]model.Video // vendor topic id -> video

	usedTags     map[string]bool
	usedSpeakers map[string]bool
}

// New returns an Extractor for cfg.
func New(cfg Config, opts Options) *Extractor {
	e := &Extractor{cfg: cfg, text: opts.Transformer, now: opts.Now, logger: opts.Logger}
	if e.text == nil {
		e.text = identity{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.cfg.conferenceEnd.IsZero() && e.cfg.ConferenceEnd != "" {
		e.cfg.conferenceEnd, _ = time.Parse(time.RFC3339, e.cfg.ConferenceEnd)
	}
	e.Reset()
	return e
}

// Reset forgets the results of earlier steps.
func (e *Extractor) Reset() {
	e.speakers = nil
	e.tagOf = nil
	e.tags = nil
	e.mainCategory = ""
	e.videos = nil
	e.usedTags = make(map[string]bool)
	e.usedSpeakers = make(map[string]bool)
}

// Extract runs every step and prunes tags and speakers no session uses.
func (e *Extractor) Extract(src Sources) (Document, error) {
	e.Reset()

	doc := Document{Rooms: e.ExtractRooms(src)}
	speakers := e.ExtractSpeakers(src)
	tags := e.ExtractTags(src)

	var err error
	if doc.VideoLibrary, err = e.ExtractVideoSessions(src); err != nil {
		return Document{}, err
	}
	if doc.Sessions, err = e.ExtractSessions(src); err != nil {
		return Document{}, err
	}

	doc.Tags = slices.DeleteFunc(tags, func(t model.Tag) bool { return !e.usedTags[t.ID] })
	doc.Speakers = slices.DeleteFunc(speakers, func(s model.Speaker) bool { return !e.usedSpeakers[s.ID] })

	e.logger.Info("extraction complete",
		"rooms", len(doc.Rooms),
		"sessions", len(doc.Sessions),
		"videos", len(doc.VideoLibrary),
		"speakers", len(doc.Speakers),
		"tags", len(doc.Tags))
	return doc, nil
}

// ExtractRooms maps vendor rooms to published rooms. Vendor rooms mapped to
// the same id collapse into the first.
func (e *Extractor) ExtractRooms(src Sources) []model.Room {
	seen := make(map[string]bool)
	rooms := make([]model.Room, 0, len(src.Rooms))
	for _, r := range src.Rooms {
		id := e.cfg.roomID(r.ID)
		if seen[id] {
			continue
		}
		seen[id] = true
		rooms = append(rooms, model.Room{
			ID:         id,
			Name:       e.cfg.roomTitle(id, r.Name),
			OriginalID: r.ID,
			Capacity:   r.Capacity,
			Filter:     r.Publish,
		})
	}
	return rooms
}

// ExtractSpeakers converts speaker profiles.
func (e *Extractor) ExtractSpeakers(src Sources) []model.Speaker {
	e.speakers = make(map[string]model.Speaker, len(src.Speakers))
	speakers := make([]model.Speaker, 0, len(src.Speakers))
	for _, s := range src.Speakers {
		out := model.Speaker{
			ID:         s.ID,
			Name:       e.text.Transform(s.Name),
			Bio:        e.text.Transform(s.Bio),
			Company:    e.text.Transform(s.CompanyName),
			PlusoneURL: profileURL("https://plus.google.com/", s.Info[InfoPlusID]),
			TwitterURL: profileURL("https://twitter.com/", strings.TrimPrefix(s.Info[InfoTwitter], "@")),
		}
		if s.Photo != "" {
			out.ThumbnailURL = profileURL(e.cfg.PhotoURLPrefix, s.Photo)
		}
		speakers = append(speakers, out)
		e.speakers[s.ID] = out
	}
	return speakers
}

func profileURL(prefix, v string) string {
	switch {
	case v == "":
		return ""
	case strings.HasPrefix(v, "http://"), strings.HasPrefix(v, "https://"):
		return v
	default:
		return prefix + v
	}
}

// ExtractTags turns child categories into tags. A child's tag category
// comes from the tag_category_mapping entry of its parent; children of
// unmapped parents are dropped.
func (e *Extractor) ExtractTags(src Sources) []model.Tag {
	mappings := make(map[string]TagCategoryMapping, len(src.TagCategoryMapping))
	for _, m := range src.TagCategoryMapping {
		mappings[m.CategoryID] = m
	}
	confs := make(map[string]TagConf, len(src.TagConf))
	for _, c := range src.TagConf {
		confs[c.Tag] = c
	}

	e.tagOf = make(map[string]string)
	e.tags = make(map[string]model.Tag)
	emitted := make(map[string]string) // real tag id -> tag id
	var tags []model.Tag

	for _, c := range src.Categories {
		if c.ParentID == "" {
			continue
		}
		m, ok := mappings[c.ParentID]
		if !ok {
			continue
		}
		category := model.TagCategory(m.TagName)
		if !category.Valid() {
			e.logger.Warn("skipping category with unknown tag category",
				"category", c.ID, "tag_category", m.TagName)
			continue
		}
		if m.IsDefault {
			e.mainCategory = category
		}

		// Tag config is keyed by the real tag id even when names are
		// rewritten.
		originalID := model.TagID(category, tagName(c.Name))
		name := e.text.Transform(c.Name)
		tag := model.Tag{
			ID:         model.TagID(category, tagName(name)),
			Category:   category,
			Name:       name,
			OriginalID: c.ID,
			Abstract:   e.text.Transform(c.Description),
		}
		if conf, ok := confs[originalID]; ok {
			tag.OrderInCategory = conf.OrderInCategory
			tag.Color = conf.Color
			tag.Hashtag = conf.Hashtag
		}
		if category == model.CategoryTrack {
			if color := TrackColor(strings.TrimPrefix(originalID, string(model.CategoryTrack)+"_")); color != "" {
				tag.Color = color
			}
		}

		// Duplicates are decided on the real name; rewritten names may
		// collide and get a numbered id instead.
		if id, dup := emitted[originalID]; dup {
			e.tagOf[c.ID] = id
			continue
		}
		base := tag.ID
		for n := 2; ; n++ {
			if _, taken := e.tags[tag.ID]; !taken {
				break
			}
			tag.ID = fmt.Sprintf("%s_%d", base, n)
		}
		emitted[originalID] = tag.ID
		e.tagOf[c.ID] = tag.ID
		e.tags[tag.ID] = tag
		tags = append(tags, tag)
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	return tags
}

func (e *Extractor) isVideo(t VendorTopic) bool {
	return e.cfg.VideoCategory != "" && slices.Contains(t.CategoryIDs, e.cfg.VideoCategory)
}

func isHidden(t VendorTopic) bool {
	return infoBool(t.Info, InfoHidden)
}

func infoBool(info map[string]string, key string) bool {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(info[key])))
	return err == nil && b
}

func (e *Extractor) hashtagCapable(t model.Tag) bool {
	return slices.Contains(e.cfg.HashtagCategories, string(t.Category))
}

// ExtractVideoSessions converts topics in the video category into video
// library entries keyed by their YouTube id. Topics without a video URL
// have no usable id and are skipped.
func (e *Extractor) ExtractVideoSessions(src Sources) ([]model.Video, error) {
	if e.tags == nil {
		return nil, fmt.Errorf("%w: extract tags before video sessions", ErrExtractionOrder)
	}
	if e.speakers == nil {
		return nil, fmt.Errorf("%w: extract speakers before video sessions", ErrExtractionOrder)
	}

	e.videos = make(map[string]model.Video)
	videos := make([]model.Video, 0)
	for _, t := range src.Topics {
		if !e.isVideo(t) || isHidden(t) {
			continue
		}
		vid := strings.TrimSpace(t.Info[InfoVideoURL])
		if vid == "" {
			e.logger.Warn("skipping video topic without video id", "topic", t.ID)
			continue
		}

		v := model.Video{
			ID:           vid,
			VID:          vid,
			ThumbnailURL: fmt.Sprintf("http://img.youtube.com/vi/%s/hqdefault.jpg", vid),
			Title:        e.text.Transform(t.Title),
			Desc:         e.text.Transform(t.Description),
			Year:         e.cfg.Year,
		}
		for _, c := range t.CategoryIDs {
			if tag, ok := e.tags[e.tagOf[c]]; ok && e.hashtagCapable(tag) {
				v.Topic = tag.Name
				break
			}
		}

		var names []string
		for _, id := range t.SpeakerIDs {
			e.usedSpeakers[id] = true
			if sp, ok := e.speakers[id]; ok {
				names = append(names, sp.Name)
			}
		}
		v.Speakers = strings.Join(names, ", ")

		e.videos[t.ID] = v
		videos = append(videos, v)
	}
	return videos, nil
}

// ExtractSessions converts the remaining topics into sessions, marking the
// tags and speakers they reference as used.
func (e *Extractor) ExtractSessions(src Sources) ([]model.Session, error) {
	if e.videos == nil {
		return nil, fmt.Errorf("%w: extract video sessions before sessions", ErrExtractionOrder)
	}
	if e.tags == nil {
		return nil, fmt.Errorf("%w: extract tags before sessions", ErrExtractionOrder)
	}

	live := !e.now().After(e.cfg.conferenceEnd)
	sessions := make([]model.Session, 0, len(src.Topics))
	for _, t := range src.Topics {
		if e.isVideo(t) || isHidden(t) || isKeynotePlaceholder(t) {
			continue
		}

		id, keynote := e.cfg.specialID(t)
		s := model.Session{
			ID:             id,
			URL:            e.cfg.SessionURLPrefix + t.ID,
			Title:          e.text.Transform(t.Title),
			Description:    e.text.Transform(t.Description),
			StartTimestamp: e.timestamp(t.ID, "Start", t.Start),
			EndTimestamp:   e.timestamp(t.ID, "Finish", t.Finish),
			IsFeatured:     infoBool(t.Info, InfoFeatured),
			IsLivestream:   live && infoBool(t.Info, InfoLivestream),
			YoutubeURL:     strings.TrimSpace(t.Info[InfoVideoURL]),
			RelatedContent: e.relatedContent(t),
			Tags:           []string{},
		}
		if keynote {
			s.Color = keynoteColor
		}

		for _, c := range t.CategoryIDs {
			tag, ok := e.tags[e.tagOf[c]]
			if !ok || slices.Contains(s.Tags, tag.ID) {
				continue
			}
			s.Tags = append(s.Tags, tag.ID)
			e.usedTags[tag.ID] = true

			if s.MainTag == "" && e.mainCategory != "" && tag.Category == e.mainCategory {
				s.MainTag = tag.ID
				if tag.Color != "" {
					s.Color = tag.Color
				}
			}
			if s.Hashtag == "" && e.hashtagCapable(tag) {
				s.Hashtag = tag.Hashtag
				if s.Hashtag == "" {
					s.Hashtag = strings.ToLower(tagName(tag.Name))
				}
			}
		}
		if keynote {
			s.Tags = append(s.Tags, keynoteFlagTag)
		}

		s.Speakers = slices.Clone(t.SpeakerIDs)
		for _, id := range t.SpeakerIDs {
			e.usedSpeakers[id] = true
		}

		if len(t.Sessions) > 0 {
			s.Room = e.cfg.roomID(t.Sessions[0].RoomID)
			s.CaptionsURL = e.cfg.captions(s.Room)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// timestamp normalizes a vendor time to UTC RFC 3339. Unparseable values
// become empty, which the client stores as an unscheduled session.
func (e *Extractor) timestamp(topic, field, v string) string {
	if v == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		e.logger.Warn("invalid topic time", "topic", topic, "field", field, "value", v)
		return ""
	}
	return model.FormatInstant(t.UnixMilli())
}

func (e *Extractor) relatedContent(t VendorTopic) []model.RelatedContent {
	var out []model.RelatedContent
	for _, r := range t.Related {
		if r.Name != RelatedSessions {
			continue
		}
		for _, rt := range r.Topics {
			if rt.ID == "" || rt.Title == "" {
				continue
			}
			out = append(out, model.RelatedContent{ID: rt.ID, Title: e.text.Transform(rt.Title)})
		}
	}
	return out
}
