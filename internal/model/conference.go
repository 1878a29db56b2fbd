package model

import "github.com/treffen/confsync/internal/ir"

// Room is a venue location sessions take place in.
type Room struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Floor      string `json:"floor,omitempty"`
	OriginalID string `json:"original_id,omitempty"`
	Capacity   int64  `json:"capacity,omitempty"`
	Filter     bool   `json:"filter,omitempty"`
}

// Tag classifies sessions. Its natural key is the "tag" field, which by
// convention is CATEGORY_NAME.
type Tag struct {
	ID              string      `json:"tag"`
	Category        TagCategory `json:"category"`
	Name            string      `json:"name"`
	OriginalID      string      `json:"original_id,omitempty"`
	Abstract        string      `json:"abstract,omitempty"`
	OrderInCategory int64       `json:"order_in_category,omitempty"`
	Color           string      `json:"color,omitempty"`
	Hashtag         string      `json:"hashtag,omitempty"`
	PhotoURL        string      `json:"photoUrl,omitempty"`
}

// Speaker presents one or more sessions.
type Speaker struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Company      string `json:"company,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	PlusoneURL   string `json:"plusoneUrl,omitempty"`
	TwitterURL   string `json:"twitterUrl,omitempty"`
}

// RelatedContent points from a session to another session.
type RelatedContent struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Session is a scheduled talk. Start and end are RFC 3339 strings on the
// wire; handlers convert them to epoch milliseconds.
type Session struct {
	ID             string           `json:"id"`
	URL            string           `json:"url,omitempty"`
	Title          string           `json:"title,omitempty"`
	Description    string           `json:"description,omitempty"`
	StartTimestamp string           `json:"startTimestamp,omitempty"`
	EndTimestamp   string           `json:"endTimestamp,omitempty"`
	IsFeatured     bool             `json:"isFeatured"`
	IsLivestream   bool             `json:"isLivestream"`
	YoutubeURL     string           `json:"youtubeUrl,omitempty"`
	RelatedContent []RelatedContent `json:"relatedContent,omitempty"`
	Tags           []string         `json:"tags"`
	MainTag        string           `json:"mainTag,omitempty"`
	Color          string           `json:"color,omitempty"`
	Hashtag        string           `json:"hashtag,omitempty"`
	Speakers       []string         `json:"speakers,omitempty"`
	Room           string           `json:"room,omitempty"`
	CaptionsURL    string           `json:"captionsUrl,omitempty"`
	PhotoURL       string           `json:"photoUrl,omitempty"`
}

// Video is an entry of the video library.
type Video struct {
	ID           string `json:"id"`
	VID          string `json:"vid,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Title        string `json:"title,omitempty"`
	Desc         string `json:"desc,omitempty"`
	Year         int64  `json:"year"`
	Topic        string `json:"topic,omitempty"`
	Speakers     string `json:"speakers,omitempty"`
}

// Block is a non-session schedule slot such as a meal or a break.
type Block struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Type     string `json:"type,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// Card is a dismissible message shown during a display window.
type Card struct {
	ID              string `json:"id"`
	Title           string `json:"title,omitempty"`
	ShortMessage    string `json:"message,omitempty"`
	ActionColor     string `json:"actionColor,omitempty"`
	ActionText      string `json:"actionText,omitempty"`
	ActionURL       string `json:"actionUrl,omitempty"`
	ActionType      string `json:"actionType,omitempty"`
	ActionExtra     string `json:"actionExtra,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	ValidFrom       string `json:"validFrom,omitempty"`
	ValidUntil      string `json:"validUntil,omitempty"`
}

// Announcement is a news item.
type Announcement struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ActivityJSON string `json:"activityJson,omitempty"`
	URL          string `json:"url,omitempty"`
	Date         string `json:"date"`
}

// MapOverlay holds one GeoJSON document for the venue map.
type MapOverlay struct {
	ID      string `json:"id"`
	GeoJSON string `json:"geojson"`
}

func (r Room) IR() ir.Object {
	obj := ir.Object{"id": ir.String(r.ID)}
	obj.SetIfNotEmpty("name", r.Name)
	obj.SetIfNotEmpty("floor", r.Floor)
	return obj
}

func (t Tag) IR() ir.Object {
	obj := ir.Object{
		"tag":               ir.String(t.ID),
		"category":          ir.String(string(t.Category)),
		"name":              ir.String(t.Name),
		"order_in_category": ir.Int(t.OrderInCategory),
	}
	obj.SetIfNotEmpty("abstract", t.Abstract)
	obj.SetIfNotEmpty("color", t.Color)
	obj.SetIfNotEmpty("hashtag", t.Hashtag)
	obj.SetIfNotEmpty("photoUrl", t.PhotoURL)
	return obj
}

func (s Speaker) IR() ir.Object {
	obj := ir.Object{"id": ir.String(s.ID)}
	obj.SetIfNotEmpty("name", s.Name)
	obj.SetIfNotEmpty("bio", s.Bio)
	obj.SetIfNotEmpty("company", s.Company)
	obj.SetIfNotEmpty("thumbnailUrl", s.ThumbnailURL)
	obj.SetIfNotEmpty("plusoneUrl", s.PlusoneURL)
	obj.SetIfNotEmpty("twitterUrl", s.TwitterURL)
	return obj
}

// IR projects the session. Tags keep their order because the first tag of
// the default category is significant; speakers are a set.
func (s Session) IR() ir.Object {
	obj := ir.Object{
		"id":           ir.String(s.ID),
		"isFeatured":   ir.Bool(s.IsFeatured),
		"isLivestream": ir.Bool(s.IsLivestream),
		"tags":         ir.Strings(s.Tags),
		"speakers":     ir.StringSet(s.Speakers),
	}
	obj.SetIfNotEmpty("url", s.URL)
	obj.SetIfNotEmpty("title", s.Title)
	obj.SetIfNotEmpty("description", s.Description)
	obj.SetIfNotEmpty("startTimestamp", s.StartTimestamp)
	obj.SetIfNotEmpty("endTimestamp", s.EndTimestamp)
	obj.SetIfNotEmpty("youtubeUrl", s.YoutubeURL)
	obj.SetIfNotEmpty("mainTag", s.MainTag)
	obj.SetIfNotEmpty("color", s.Color)
	obj.SetIfNotEmpty("hashtag", s.Hashtag)
	obj.SetIfNotEmpty("room", s.Room)
	obj.SetIfNotEmpty("captionsUrl", s.CaptionsURL)
	obj.SetIfNotEmpty("photoUrl", s.PhotoURL)
	if len(s.RelatedContent) > 0 {
		related := make(ir.Array, len(s.RelatedContent))
		for i, rc := range s.RelatedContent {
			related[i] = ir.Object{"id": ir.String(rc.ID), "title": ir.String(rc.Title)}
		}
		obj["relatedContent"] = related
	}
	return obj
}

// RelatedSessionIDs returns the ids referenced by RelatedContent.
func (s Session) RelatedSessionIDs() []string {
	ids := make([]string, 0, len(s.RelatedContent))
	for _, rc := range s.RelatedContent {
		ids = append(ids, rc.ID)
	}
	return ids
}

func (v Video) IR() ir.Object {
	obj := ir.Object{
		"id":   ir.String(v.ID),
		"year": ir.Int(v.Year),
	}
	obj.SetIfNotEmpty("vid", v.VID)
	obj.SetIfNotEmpty("thumbnailUrl", v.ThumbnailURL)
	obj.SetIfNotEmpty("title", v.Title)
	obj.SetIfNotEmpty("desc", v.Desc)
	obj.SetIfNotEmpty("topic", v.Topic)
	obj.SetIfNotEmpty("speakers", v.Speakers)
	return obj
}

func (b Block) IR() ir.Object {
	obj := ir.Object{
		"id":    ir.String(b.ID),
		"title": ir.String(b.Title),
		"start": ir.String(b.Start),
		"end":   ir.String(b.End),
	}
	obj.SetIfNotEmpty("subtitle", b.Subtitle)
	obj.SetIfNotEmpty("type", b.Type)
	obj.SetIfNotEmpty("kind", b.Kind)
	return obj
}

func (c Card) IR() ir.Object {
	obj := ir.Object{"id": ir.String(c.ID)}
	obj.SetIfNotEmpty("title", c.Title)
	obj.SetIfNotEmpty("message", c.ShortMessage)
	obj.SetIfNotEmpty("actionColor", c.ActionColor)
	obj.SetIfNotEmpty("actionText", c.ActionText)
	obj.SetIfNotEmpty("actionUrl", c.ActionURL)
	obj.SetIfNotEmpty("actionType", c.ActionType)
	obj.SetIfNotEmpty("actionExtra", c.ActionExtra)
	obj.SetIfNotEmpty("backgroundColor", c.BackgroundColor)
	obj.SetIfNotEmpty("textColor", c.TextColor)
	obj.SetIfNotEmpty("validFrom", c.ValidFrom)
	obj.SetIfNotEmpty("validUntil", c.ValidUntil)
	return obj
}

func (a Announcement) IR() ir.Object {
	obj := ir.Object{
		"id":    ir.String(a.ID),
		"title": ir.String(a.Title),
		"date":  ir.String(a.Date),
	}
	obj.SetIfNotEmpty("activityJson", a.ActivityJSON)
	obj.SetIfNotEmpty("url", a.URL)
	return obj
}

func (m MapOverlay) IR() ir.Object {
	return ir.Object{
		"id":      ir.String(m.ID),
		"geojson": ir.String(m.GeoJSON),
	}
}
