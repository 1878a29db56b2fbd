package extractor

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// configSchema constrains extractor configuration files. Defaults live here
// so a config only states what differs per conference.
const configSchema = `
#Room: {
	id:        string & !=""
	title?:    string
	captions?: string
}

#Config: {
	year:           int & >=2000
	conference_end: string & =~"^[0-9]{4}-[0-9]{2}-[0-9]{2}T"
	video_category: string | *""
	keynote_ids: [...string] | *[]
	rooms: [string]: #Room
	session_url_prefix: string | *"https://events.example.com/schedule?sid="
	photo_url_prefix:   string | *""
	hashtag_categories: [...("TYPE" | "TRACK" | "TOPIC" | "THEME")] | *["TOPIC", "TRACK"]
}
`

// RoomMapping renames a vendor room and attaches its live captions URL.
type RoomMapping struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Captions string `json:"captions,omitempty"`
}

// Config holds the per-conference rules of an extraction.
type Config struct {
	Year          int64                  `json:"year"`
	ConferenceEnd string                 `json:"conference_end"`
	VideoCategory string                 `json:"video_category"`
	KeynoteIDs    []string               `json:"keynote_ids"`
	Rooms         map[string]RoomMapping `json:"rooms"`

	SessionURLPrefix  string   `json:"session_url_prefix"`
	PhotoURLPrefix    string   `json:"photo_url_prefix"`
	HashtagCategories []string `json:"hashtag_categories"`

	conferenceEnd time.Time
}

// ConfigError reports an invalid configuration, with the CUE position of
// the offending value when one is known.
type ConfigError struct {
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// LoadConfig reads a CUE (or JSON) configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return ParseConfig(path, data)
}

// ParseConfig validates src against the configuration schema and decodes
// it. filename is only used in error positions.
func ParseConfig(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(configSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, cueError(err)
	}

	v = schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, cueError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, cueError(err)
	}

	end, err := time.Parse(time.RFC3339, cfg.ConferenceEnd)
	if err != nil {
		return Config{}, &ConfigError{
			Message: fmt.Sprintf("conference_end: %v", err),
			Pos:     v.LookupPath(cue.ParsePath("conference_end")).Pos(),
		}
	}
	cfg.conferenceEnd = end
	return cfg, nil
}

func cueError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Message: err.Error()}
	}
	first := errs[0]
	var pos token.Pos
	if positions := errors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &ConfigError{Message: first.Error(), Pos: pos}
}

// roomID maps a vendor room id to the published one.
func (c Config) roomID(original string) string {
	if m, ok := c.Rooms[original]; ok {
		return m.ID
	}
	return original
}

// roomTitle returns the configured title of a published room, or fallback.
func (c Config) roomTitle(id, fallback string) string {
	for _, m := range c.Rooms {
		if m.ID == id && m.Title != "" {
			return m.Title
		}
	}
	return fallback
}

// captions returns the captions URL of a published room.
func (c Config) captions(id string) string {
	for _, m := range c.Rooms {
		if m.ID == id && m.Captions != "" {
			return m.Captions
		}
	}
	return ""
}
