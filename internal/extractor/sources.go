package extractor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// Source names, as file stems in a source directory or keys of a combined
// export.
const (
	SourceRooms              = "rooms"
	SourceCategories         = "categories"
	SourceSpeakers           = "speakers"
	SourceTopics             = "topics"
	SourceTagCategoryMapping = "tag_category_mapping"
	SourceTagConf            = "tag_conf"
)

// Keys of the free-form info maps attached to vendor records.
const (
	InfoHidden      = "Hidden from schedule"
	InfoFeatured    = "Featured Session"
	InfoLivestream  = "Is Live Stream"
	InfoVideoURL    = "Video Stream URL"
	InfoTwitter     = "Public Twitter"
	InfoPlusID      = "Public Plus Id"
	RelatedSessions = "Related Sessions"
)

// VendorRoom is a room of the CMS export.
type VendorRoom struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	Capacity int64  `json:"Capacity"`
	Publish  bool   `json:"Publish"`
}

// VendorCategory is a CMS category. Root categories (no parent) name tag
// categories; their children become tags.
type VendorCategory struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	ParentID    string `json:"ParentId"`
	Description string `json:"Description"`
}

// VendorSpeaker is a CMS speaker profile.
type VendorSpeaker struct {
	ID          string            `json:"Id"`
	Name        string            `json:"Name"`
	Bio         string            `json:"Bio"`
	CompanyName string            `json:"CompanyName"`
	Photo       string            `json:"Photo"`
	Info        map[string]string `json:"Info"`
}

// VendorSlot places a topic in a room.
type VendorSlot struct {
	RoomID string `json:"RoomId"`
}

// VendorRelatedTopic is one entry of a related content list.
type VendorRelatedTopic struct {
	ID    string `json:"Id"`
	Title string `json:"Title"`
}

// VendorRelated is a named list of related content.
type VendorRelated struct {
	Name   string               `json:"name"`
	Topics []VendorRelatedTopic `json:"topics"`
}

// VendorTopic is a CMS talk. Topics tagged with the video category become
// video library entries instead of sessions.
type VendorTopic struct {
	ID          string            `json:"Id"`
	Title       string            `json:"Title"`
	Description string            `json:"Description"`
	Start       string            `json:"Start"`
	Finish      string            `json:"Finish"`
	CategoryIDs []string          `json:"CategoryIds"`
	SpeakerIDs  []string          `json:"SpeakerIds"`
	Sessions    []VendorSlot      `json:"Sessions"`
	Info        map[string]string `json:"Info"`
	Related     []VendorRelated   `json:"Related"`
}

// TagCategoryMapping maps a root category id to a tag category.
type TagCategoryMapping struct {
	CategoryID string `json:"category_id"`
	TagName    string `json:"tag_name"`
	IsDefault  bool   `json:"is_default"`
}

// TagConf carries presentation settings for one tag, keyed by tag id.
type TagConf struct {
	Tag             string `json:"tag"`
	OrderInCategory int64  `json:"order_in_category"`
	Color           string `json:"color"`
	Hashtag         string `json:"hashtag"`
}

// Sources is a complete vendor export. Absent sources are empty.
type Sources struct {
	Rooms              []VendorRoom         `json:"rooms"`
	Categories         []VendorCategory     `json:"categories"`
	Speakers           []VendorSpeaker      `json:"speakers"`
	Topics             []VendorTopic        `json:"topics"`
	TagCategoryMapping []TagCategoryMapping `json:"tag_category_mapping"`
	TagConf            []TagConf            `json:"tag_conf"`
}

// ParseSources decodes a combined export holding every source under its
// name.
func ParseSources(data []byte) (Sources, error) {
	var src Sources
	if err := json.Unmarshal(data, &src); err != nil {
		return Sources{}, fmt.Errorf("parse sources: %w", err)
	}
	return src, nil
}

// LoadSources reads a source directory holding one <name>.json file per
// source. Missing files leave their source empty.
func LoadSources(dir string) (Sources, error) {
	var src Sources
	files := []struct {
		name string
		dst  any
	}{
		{SourceRooms, &src.Rooms},
		{SourceCategories, &src.Categories},
		{SourceSpeakers, &src.Speakers},
		{SourceTopics, &src.Topics},
		{SourceTagCategoryMapping, &src.TagCategoryMapping},
		{SourceTagConf, &src.TagConf},
	}
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.name+".json"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Sources{}, fmt.Errorf("load sources: %w", err)
		}
		if err := json.Unmarshal(data, f.dst); err != nil {
			return Sources{}, fmt.Errorf("load sources: %s: %w", f.name, err)
		}
	}
	return src, nil
}
