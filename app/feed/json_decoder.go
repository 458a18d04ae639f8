package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPageParam       = "page"
	DefaultStartPage       = 1
	DefaultEntriesKey      = "entries"
	DefaultTotalPagesKey   = "totalPages"
	DefaultTotalEntriesKey = "totalEntries"
	DefaultIDKey           = "id"
)

// JSONDecoder reads a paginated JSON API. Every page must be an object with
// an entries list plus total page and total entry counts. Pagination follows
// the total page count of the most recently fetched page.
type JSONDecoder struct {
	baseURL         string
	params          url.Values
	pageParam       string
	startPage       int
	entriesKey      string
	totalPagesKey   string
	totalEntriesKey string
	idKey           string
}

var _ Decoder = (*JSONDecoder)(nil)

type JSONOption func(*JSONDecoder)

// WithParams sets the base query parameters sent with every page request.
func WithParams(params url.Values) JSONOption {
	return func(d *JSONDecoder) {
		d.params = url.Values{}
		for k, v := range params {
			d.params[k] = append([]string(nil), v...)
		}
	}
}

func WithPageParam(name string) JSONOption {
	return func(d *JSONDecoder) {
		if name != "" {
			d.pageParam = name
		}
	}
}

func WithStartPage(page int) JSONOption {
	return func(d *JSONDecoder) {
		if page > 0 {
			d.startPage = page
		}
	}
}

// WithResponseKeys renames the required response keys. Empty names keep
// the defaults.
func WithResponseKeys(entries, totalPages, totalEntries string) JSONOption {
	return func(d *JSONDecoder) {
		if entries != "" {
			d.entriesKey = entries
		}
		if totalPages != "" {
			d.totalPagesKey = totalPages
		}
		if totalEntries != "" {
			d.totalEntriesKey = totalEntries
		}
	}
}

// WithIDKey names the entry field used as the record key ("id").
func WithIDKey(name string) JSONOption {
	return func(d *JSONDecoder) {
		if name != "" {
			d.idKey = name
		}
	}
}

func NewJSONDecoder(baseURL string, opts ...JSONOption) *JSONDecoder {
	d := &JSONDecoder{
		baseURL:         baseURL,
		params:          url.Values{},
		pageParam:       DefaultPageParam,
		startPage:       DefaultStartPage,
		entriesKey:      DefaultEntriesKey,
		totalPagesKey:   DefaultTotalPagesKey,
		totalEntriesKey: DefaultTotalEntriesKey,
		idKey:           DefaultIDKey,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *JSONDecoder) URL() string {
	return d.baseURL
}

func (d *JSONDecoder) Decode(f Fetcher) Iterator {
	return &jsonIterator{decoder: d, fetcher: f, page: d.startPage}
}

// Count fetches the start page only and returns its declared entry total.
func (d *JSONDecoder) Count(ctx context.Context, f Fetcher) (int, error) {
	page, err := d.fetchPage(ctx, f, d.startPage)
	if err != nil {
		return 0, err
	}
	return page.totalEntries, nil
}

func (d *JSONDecoder) sourceType() SourceType {
	return SourceTypeJSON
}

// PageURL builds the request URL for the given page number.
func (d *JSONDecoder) PageURL(page int) (string, error) {
	parsed, err := url.Parse(d.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", d.baseURL, err)
	}

	query := parsed.Query()
	for k, v := range d.params {
		query[k] = append([]string(nil), v...)
	}
	query.Set(d.pageParam, strconv.Itoa(page))
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

type jsonPage struct {
	records      []Record
	totalPages   int
	totalEntries int
}

func (d *JSONDecoder) fetchPage(ctx context.Context, f Fetcher, page int) (*jsonPage, error) {
	pageURL, err := d.PageURL(page)
	if err != nil {
		return nil, &TransportError{URL: d.baseURL, Err: err}
	}

	data, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	result, err := d.decodePage(pageURL, data)
	if err != nil {
		return nil, err
	}

	slog.Debug("JSON page decoded",
		"url", pageURL,
		"page", page,
		"entries", len(result.records),
		"total_pages", result.totalPages,
		"total_entries", result.totalEntries)

	return result, nil
}

func (d *JSONDecoder) decodePage(pageURL string, data []byte) (*jsonPage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, jsonParseError(pageURL, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &DecodeError{
			URL:     pageURL,
			Kind:    ParseFailure,
			Code:    int(dec.InputOffset()),
			Message: "invalid data after top-level value",
		}
	}

	obj, ok := doc.(map[string]any)
	if !ok || !hasKeys(obj, d.entriesKey, d.totalPagesKey, d.totalEntriesKey) {
		return nil, d.unrecognized(pageURL, fmt.Sprintf("expected an object with %s, %s and %s",
			d.entriesKey, d.totalPagesKey, d.totalEntriesKey))
	}

	entries, ok := obj[d.entriesKey].([]any)
	if !ok && obj[d.entriesKey] != nil {
		return nil, d.unrecognized(pageURL, fmt.Sprintf("%s is not a list", d.entriesKey))
	}

	totalPages, ok := toInt(obj[d.totalPagesKey])
	if !ok {
		return nil, d.unrecognized(pageURL, fmt.Sprintf("%s is not an integer", d.totalPagesKey))
	}

	totalEntries, ok := toInt(obj[d.totalEntriesKey])
	if !ok {
		return nil, d.unrecognized(pageURL, fmt.Sprintf("%s is not an integer", d.totalEntriesKey))
	}

	records := make([]Record, 0, len(entries))
	for i, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, d.unrecognized(pageURL, fmt.Sprintf("%s[%d] is not an object", d.entriesKey, i))
		}
		records = append(records, Record{Key: keyString(entry[d.idKey]), Value: entry})
	}

	return &jsonPage{
		records:      records,
		totalPages:   totalPages,
		totalEntries: totalEntries,
	}, nil
}

func (d *JSONDecoder) unrecognized(pageURL, detail string) error {
	return &DecodeError{
		URL:     pageURL,
		Kind:    MissingFields,
		Message: "unrecognized response format: " + detail,
	}
}

func jsonParseError(pageURL string, err error) error {
	decodeErr := &DecodeError{
		URL:     pageURL,
		Kind:    ParseFailure,
		Message: err.Error(),
		Err:     err,
	}

	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &syntaxErr):
		decodeErr.Code = int(syntaxErr.Offset)
	case err == io.EOF:
		decodeErr.Message = "empty response body"
	}

	return decodeErr
}

type jsonIterator struct {
	decoder    *JSONDecoder
	fetcher    Fetcher
	page       int
	totalPages int
	started    bool
	buffer     []Record
	pos        int
	err        error
}

func (it *jsonIterator) Next(ctx context.Context) (Record, error) {
	if it.err != nil {
		return Record{}, it.err
	}

	for it.pos >= len(it.buffer) {
		if it.started && it.page > it.totalPages {
			return Record{}, ErrDone
		}

		page, err := it.decoder.fetchPage(ctx, it.fetcher, it.page)
		if err != nil {
			it.err = err
			return Record{}, err
		}

		it.started = true
		it.buffer = page.records
		it.pos = 0
		it.page++
		it.totalPages = page.totalPages
	}

	record := it.buffer[it.pos]
	it.pos++
	return record, nil
}

func hasKeys(obj map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := obj[key]; !ok {
			return false
		}
	}
	return true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		// Beyond the int range a float would wrap silently on conversion.
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) && f >= math.MinInt && f < math.MaxInt {
			return int(f), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func keyString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}
