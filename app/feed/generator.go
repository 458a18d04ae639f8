package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cudev/game-feed/app/cfg"
)

const (
	ChannelTitle       = "Game Feed"
	ChannelDescription = "Games aggregated from all configured sources"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders games as an RSS 2.0 document. Filtered games are left out.
func (g *Generator) Run(games []*Game) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	baseLink := g.baseLink()
	g.writeElement(&buf, "title", ChannelTitle, 4)
	g.writeElement(&buf, "link", baseLink, 4)
	g.writeElement(&buf, "description", ChannelDescription, 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(baseLink+"/games/rss")))

	lastBuildDate := time.Now().In(time.Local)
	for _, game := range games {
		if game.PublishedAt != nil && !game.IsFiltered {
			lastBuildDate = *game.PublishedAt
			break
		}
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Game-Feed/%s", cfg.Get().Version), 4)

	for _, game := range games {
		if game.IsFiltered {
			continue
		}
		g.writeItem(&buf, game)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) baseLink() string {
	if cfg.Get().BaseUrl != "" {
		return cfg.Get().BaseUrl
	}
	return fmt.Sprintf("http://localhost:%s", cfg.Get().Port)
}

func (g *Generator) writeItem(buf *bytes.Buffer, game *Game) {
	buf.WriteString("    <item>\n")

	if game.GUID != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(game.GUID)))
		xml.EscapeText(buf, []byte(game.GUID))
		buf.WriteString("</guid>\n")
	}

	if game.Title != "" {
		g.writeElement(buf, "title", game.Title, 6)
	}

	if game.Link != "" {
		g.writeElement(buf, "link", game.Link, 6)
	}

	g.writeElement(buf, "description", cmp.Or(game.Description, "No description available"), 6)

	if game.PublishedAt != nil {
		g.writeElement(buf, "pubDate", game.PublishedAt.Format(time.RFC1123Z), 6)
	}

	if len(game.Authors) > 0 && game.Authors[0] != "" {
		g.writeElement(buf, "author", game.Authors[0], 6)
	}

	for _, category := range game.Categories {
		if category != "" {
			g.writeElement(buf, "category", category, 6)
		}
	}

	if game.Source != "" {
		g.writeElement(buf, "source", game.Source, 6)
	}

	// RSS 2.0 requires url, length and type; the image size is unknown.
	if game.ImageURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(game.ImageURL),
			html.EscapeString(imageType(game.ImageURL))))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}

func imageType(imageURL string) string {
	var ext string
	if parsed, err := url.Parse(imageURL); err == nil {
		ext = strings.ToLower(path.Ext(parsed.Path))
	}

	switch ext {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
