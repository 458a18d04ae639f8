package feed

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	NormalizerRSS  = "rss"
	NormalizerJSON = "json"
	NormalizerNone = "none"
)

// Game fields a Mapper can populate.
var mapperFields = map[string]bool{
	"guid":        true,
	"title":       true,
	"link":        true,
	"description": true,
	"image":       true,
	"published":   true,
	"authors":     true,
	"categories":  true,
}

// DefaultJSONFields maps game fields onto the common entry layout of game
// catalogue APIs.
var DefaultJSONFields = map[string]string{
	"guid":        "id",
	"title":       "title",
	"link":        "gameURL",
	"description": "description",
	"image":       "thumbnails.large",
	"published":   "publishedAt",
	"categories":  "category",
}

// Mapper builds games out of decoded JSON entries through a field map of
// dotted paths ("thumbnails.large", "tags.0").
type Mapper struct {
	fields map[string]string
}

func NewMapper(fields map[string]string) (*Mapper, error) {
	if len(fields) == 0 {
		fields = DefaultJSONFields
	}

	m := &Mapper{fields: make(map[string]string, len(fields))}
	for field, path := range fields {
		if !mapperFields[field] {
			return nil, fmt.Errorf("unknown game field: %s", field)
		}
		if path == "" {
			return nil, fmt.Errorf("empty path for game field: %s", field)
		}
		m.fields[field] = path
	}
	return m, nil
}

func (m *Mapper) Map(entry map[string]any) *Game {
	game := &Game{
		GUID:  m.text(entry, "guid"),
		Title: normalizeText(m.text(entry, "title")),
		Link:  m.text(entry, "link"),
	}

	game.Description, _ = htmlToText(m.text(entry, "description"))
	game.ImageURL = m.text(entry, "image")
	game.Authors = m.list(entry, "authors")
	game.Categories = m.list(entry, "categories")

	game.PublishedAt = m.time(entry, "published")

	game.GUID = cmp.Or(game.GUID, game.Link)
	game.ContentHash = generateContentHash(game)
	return game
}

func (m *Mapper) Transformer() Transformer {
	return func(record Record) (Record, error) {
		entry, ok := record.Value.(map[string]any)
		if !ok {
			return Record{}, fmt.Errorf("json normalizer expects an entry object, got %T", record.Value)
		}

		game := m.Map(entry)
		game.Source = record.Source
		if game.GUID == "" {
			game.GUID = record.Key
		}

		record.Value = game
		return record, nil
	}
}

func (m *Mapper) text(entry map[string]any, field string) string {
	path, ok := m.fields[field]
	if !ok {
		return ""
	}
	return strings.TrimSpace(scalarString(lookup(entry, path)))
}

// time accepts unix seconds or any layout dateparse recognizes.
func (m *Mapper) time(entry map[string]any, field string) *time.Time {
	path, ok := m.fields[field]
	if !ok {
		return nil
	}

	var t time.Time
	switch v := lookup(entry, path).(type) {
	case json.Number:
		seconds, err := v.Int64()
		if err != nil {
			return nil
		}
		t = time.Unix(seconds, 0)
	case string:
		parsed, err := dateparse.ParseAny(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		t = parsed
	default:
		return nil
	}

	t = t.UTC()
	return &t
}

func (m *Mapper) list(entry map[string]any, field string) []string {
	path, ok := m.fields[field]
	if !ok {
		return nil
	}

	var values []string
	switch v := lookup(entry, path).(type) {
	case []any:
		for _, item := range v {
			if s := normalizeText(scalarString(item)); s != "" {
				values = append(values, s)
			}
		}
	default:
		for _, part := range strings.Split(scalarString(v), ",") {
			if s := normalizeText(part); s != "" {
				values = append(values, s)
			}
		}
	}
	return values
}

// lookup resolves a dotted path through nested objects and lists.
func lookup(value any, path string) any {
	for _, part := range strings.Split(path, ".") {
		switch v := value.(type) {
		case map[string]any:
			value = v[part]
		case []any:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(v) {
				return nil
			}
			value = v[index]
		default:
			return nil
		}
	}
	return value
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return fmt.Sprint(s)
	default:
		return ""
	}
}
