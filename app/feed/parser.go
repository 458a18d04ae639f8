package feed

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"
)

// Parser turns single serialized RSS items into games.
type Parser struct {
	gofeedParser *gofeed.Parser
	itemName     string
}

func NewParser() *Parser {
	return NewItemParser(DefaultItemName)
}

// NewItemParser parses items serialized under a custom element name, as
// yielded by an XMLDecoder built with WithItemName.
func NewItemParser(itemName string) *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		itemName:     cmp.Or(itemName, DefaultItemName),
	}
}

// ParseItem parses one item element as yielded by XMLDecoder.
func (p *Parser) ParseItem(raw string) (*Game, error) {
	document := `<rss version="2.0"><channel>` + p.asItem(raw) + `</channel></rss>`

	parsed, err := p.gofeedParser.ParseString(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse item: %w", err)
	}
	if len(parsed.Items) != 1 || parsed.Items[0] == nil {
		return nil, fmt.Errorf("expected exactly one item, got %d", len(parsed.Items))
	}

	return p.normalizeItem(parsed.Items[0]), nil
}

// asItem renames the root element of raw to <item> so gofeed picks it up.
func (p *Parser) asItem(raw string) string {
	if p.itemName == DefaultItemName {
		return raw
	}

	open := "<" + p.itemName
	closing := "</" + p.itemName + ">"
	if !strings.HasPrefix(raw, open) || !strings.HasSuffix(raw, closing) {
		return raw
	}
	rest := raw[len(open):]
	if rest == "" || (rest[0] != '>' && rest[0] != ' ') {
		return raw
	}

	return "<item" + strings.TrimSuffix(rest, closing) + "</item>"
}

// Transformer adapts ParseItem to the Transformer signature. Records whose
// value is not a string are rejected.
func (p *Parser) Transformer() Transformer {
	return func(record Record) (Record, error) {
		raw, ok := record.Value.(string)
		if !ok {
			return Record{}, fmt.Errorf("rss normalizer expects a serialized item, got %T", record.Value)
		}

		game, err := p.ParseItem(raw)
		if err != nil {
			return Record{}, err
		}
		game.Source = record.Source
		if record.Key == "" {
			record.Key = game.GUID
		}

		record.Value = game
		return record, nil
	}
}

func (p *Parser) normalizeItem(item *gofeed.Item) *Game {
	description, descriptionImage := htmlToText(cmp.Or(item.Description, item.Content))

	game := &Game{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       normalizeText(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Description: description,
		Authors:     p.extractAuthors(item),
	}

	if item.PublishedParsed != nil {
		game.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		game.PublishedAt = item.UpdatedParsed
	}

	for _, category := range item.Categories {
		if category = normalizeText(category); category != "" {
			game.Categories = append(game.Categories, category)
		}
	}

	switch {
	case item.Image != nil && item.Image.URL != "":
		game.ImageURL = item.Image.URL
	case imageEnclosure(item) != "":
		game.ImageURL = imageEnclosure(item)
	default:
		game.ImageURL = descriptionImage
	}

	game.ContentHash = generateContentHash(game)
	return game
}

func (p *Parser) extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				authorStr := formatAuthor(author.Name, author.Email)
				if authorStr != "" {
					authors = append(authors, authorStr)
				}
			}
		}
	} else if item.Author != nil {
		authorStr := formatAuthor(item.Author.Name, item.Author.Email)
		if authorStr != "" {
			authors = append(authors, authorStr)
		}
	}

	return authors
}

func imageEnclosure(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}
	return ""
}

// htmlToText strips markup from an HTML fragment and returns its text along
// with the first image source found in it.
func htmlToText(fragment string) (string, string) {
	if strings.TrimSpace(fragment) == "" {
		return "", ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeText(fragment), ""
	}

	image, _ := doc.Find("img[src]").First().Attr("src")
	return normalizeText(doc.Text()), strings.TrimSpace(image)
}

// normalizeText collapses whitespace and converts to NFC.
func normalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}

func generateContentHash(game *Game) string {
	content := fmt.Sprintf("%s|%s",
		game.Title,
		game.Link)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
