package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

const (
	DefaultChannelName = "channel"
	DefaultItemName    = "item"
)

var (
	utf8BOM = []byte("\xef\xbb\xbf")

	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// XMLDecoder reads a single-document feed. Items are looked up under a
// channel element that is a direct child of the document root and are
// yielded re-serialized to text, in document order.
type XMLDecoder struct {
	url         string
	channelName string
	itemName    string
}

var _ Decoder = (*XMLDecoder)(nil)

type XMLOption func(*XMLDecoder)

// WithChannelName overrides the container element name ("channel").
func WithChannelName(name string) XMLOption {
	return func(d *XMLDecoder) {
		if name != "" {
			d.channelName = name
		}
	}
}

// WithItemName overrides the item element name ("item").
func WithItemName(name string) XMLOption {
	return func(d *XMLDecoder) {
		if name != "" {
			d.itemName = name
		}
	}
}

func NewXMLDecoder(url string, opts ...XMLOption) *XMLDecoder {
	d := &XMLDecoder{
		url:         url,
		channelName: DefaultChannelName,
		itemName:    DefaultItemName,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *XMLDecoder) URL() string {
	return d.url
}

func (d *XMLDecoder) Decode(f Fetcher) Iterator {
	return &xmlIterator{decoder: d, fetcher: f}
}

func (d *XMLDecoder) Count(ctx context.Context, f Fetcher) (int, error) {
	items, err := d.load(ctx, f)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (d *XMLDecoder) sourceType() SourceType {
	return SourceTypeXML
}

func (d *XMLDecoder) load(ctx context.Context, f Fetcher) ([]string, error) {
	data, err := f.Fetch(ctx, d.url)
	if err != nil {
		return nil, err
	}

	items, err := d.extract(data)
	if err != nil {
		return nil, err
	}

	slog.Debug("XML feed decoded", "url", d.url, "items", len(items))
	return items, nil
}

// extract walks the document once, validating well-formedness and
// serializing every item found under the first channel element.
func (d *XMLDecoder) extract(data []byte) ([]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.CharsetReader = charsetReader

	var (
		stack        []xml.StartElement
		rootSeen     bool
		channelSeen  bool
		channelDepth int
		item         *bytes.Buffer
		items        []string
	)

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, d.parseError(dec, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				if rootSeen {
					return nil, d.parseError(dec, errors.New("extra content at the end of the document"))
				}
				rootSeen = true
			}
			t = t.Copy()
			stack = append(stack, t)
			depth := len(stack)
			name := qualifiedName(t.Name)

			switch {
			case item != nil:
				writeStartElement(item, t, nil)
			case channelDepth > 0 && depth == channelDepth+1 && name == d.itemName:
				item = &bytes.Buffer{}
				writeStartElement(item, t, inScopeNamespaces(stack[:depth-1]))
			case !channelSeen && depth == 2 && name == d.channelName:
				channelSeen = true
				channelDepth = depth
			}

		case xml.EndElement:
			depth := len(stack)
			name := qualifiedName(t.Name)
			if depth == 0 || qualifiedName(stack[depth-1].Name) != name {
				return nil, d.parseError(dec, fmt.Errorf("unexpected end element </%s>", name))
			}

			switch {
			case item != nil:
				item.WriteString("</" + name + ">")
				if depth == channelDepth+1 {
					items = append(items, item.String())
					item = nil
				}
			case depth == channelDepth:
				channelDepth = 0
			}
			stack = stack[:depth-1]

		case xml.CharData:
			if item != nil {
				textEscaper.WriteString(item, string(t))
			} else if len(stack) == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, d.parseError(dec, errors.New("content outside of the root element"))
			}
		}
	}

	if !rootSeen {
		return nil, d.parseError(dec, errors.New("document is empty"))
	}
	if len(stack) > 0 {
		return nil, d.parseError(dec, fmt.Errorf("premature end of data in element <%s>", qualifiedName(stack[len(stack)-1].Name)))
	}

	if len(items) == 0 {
		return nil, &DecodeError{
			URL:     d.url,
			Kind:    MissingFields,
			Message: fmt.Sprintf("cannot find %s and %s nodes in XML feed", d.channelName, d.itemName),
		}
	}

	return items, nil
}

func (d *XMLDecoder) parseError(dec *xml.Decoder, err error) error {
	decodeErr := &DecodeError{
		URL:     d.url,
		Kind:    ParseFailure,
		Message: err.Error(),
		Err:     err,
	}

	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		decodeErr.Message = syntaxErr.Msg
		decodeErr.Code = syntaxErr.Line
	} else {
		decodeErr.Code, _ = dec.InputPos()
	}

	return decodeErr
}

type xmlIterator struct {
	decoder *XMLDecoder
	fetcher Fetcher
	items   []string
	loaded  bool
	pos     int
	err     error
}

func (it *xmlIterator) Next(ctx context.Context) (Record, error) {
	if it.err != nil {
		return Record{}, it.err
	}

	if !it.loaded {
		items, err := it.decoder.load(ctx, it.fetcher)
		if err != nil {
			it.err = err
			return Record{}, err
		}
		it.items = items
		it.loaded = true
	}

	if it.pos >= len(it.items) {
		return Record{}, ErrDone
	}

	record := Record{Value: it.items[it.pos]}
	it.pos++
	return record, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func isNamespaceDecl(attr xml.Attr) bool {
	return (attr.Name.Space == "" && attr.Name.Local == "xmlns") || attr.Name.Space == "xmlns"
}

// inScopeNamespaces collects the namespace declarations of the given
// ancestors, innermost winning, so a serialized item stays self-contained.
func inScopeNamespaces(ancestors []xml.StartElement) []xml.Attr {
	var decls []xml.Attr
	index := make(map[string]int)
	for _, el := range ancestors {
		for _, attr := range el.Attr {
			if !isNamespaceDecl(attr) {
				continue
			}
			name := qualifiedName(attr.Name)
			if i, ok := index[name]; ok {
				decls[i] = attr
				continue
			}
			index[name] = len(decls)
			decls = append(decls, attr)
		}
	}
	return decls
}

func writeStartElement(buf *bytes.Buffer, el xml.StartElement, inherited []xml.Attr) {
	buf.WriteString("<" + qualifiedName(el.Name))

	declared := make(map[string]bool, len(el.Attr))
	for _, attr := range el.Attr {
		declared[qualifiedName(attr.Name)] = true
	}
	for _, attr := range inherited {
		if !declared[qualifiedName(attr.Name)] {
			writeAttr(buf, attr)
		}
	}
	for _, attr := range el.Attr {
		writeAttr(buf, attr)
	}

	buf.WriteString(">")
}

func writeAttr(buf *bytes.Buffer, attr xml.Attr) {
	buf.WriteString(" " + qualifiedName(attr.Name) + `="`)
	attrEscaper.WriteString(buf, attr.Value)
	buf.WriteString(`"`)
}
