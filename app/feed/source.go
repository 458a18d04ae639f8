package feed

import (
	"fmt"
	"net/url"
)

// NewSourceDecoder builds the decoder variant a source config asks for.
func NewSourceDecoder(c *SourceConfig) (Decoder, error) {
	switch c.Type {
	case SourceTypeXML:
		return NewXMLDecoder(c.URL,
			WithChannelName(c.XML.Channel),
			WithItemName(c.XML.Item),
		), nil
	case SourceTypeJSON:
		params := url.Values{}
		for k, v := range c.JSON.Params {
			params.Set(k, v)
		}
		return NewJSONDecoder(c.URL,
			WithParams(params),
			WithPageParam(c.JSON.PageParam),
			WithStartPage(c.JSON.StartPage),
			WithResponseKeys(c.JSON.EntriesKey, c.JSON.TotalPagesKey, c.JSON.TotalEntriesKey),
			WithIDKey(c.JSON.IDKey),
		), nil
	default:
		return nil, fmt.Errorf("unknown source type: %q", c.Type)
	}
}

// NewSourceTransformer builds the normalizer of a source followed by its
// filters. It returns nil for the "none" normalizer.
func NewSourceTransformer(c *SourceConfig) (Transformer, error) {
	var normalize Transformer

	switch c.Normalizer {
	case NormalizerNone:
		return nil, nil
	case NormalizerRSS:
		normalize = NewItemParser(c.XML.Item).Transformer()
	case NormalizerJSON:
		mapper, err := NewMapper(c.Fields)
		if err != nil {
			return nil, err
		}
		normalize = mapper.Transformer()
	default:
		return nil, fmt.Errorf("unknown normalizer: %q", c.Normalizer)
	}

	if len(c.Filters) == 0 {
		return normalize, nil
	}

	filterer := NewFilterer()
	return func(record Record) (Record, error) {
		record, err := normalize(record)
		if err != nil {
			return Record{}, err
		}
		if game, ok := record.Value.(*Game); ok {
			filterer.Run(game, c.Filters)
		}
		return record, nil
	}, nil
}

// BuildRetriever wires a source config into a Retriever. opts carry the
// process-wide fetch settings; a cache TTL set on the source overrides them.
func BuildRetriever(c *SourceConfig, opts ...RetrieverOption) (*Retriever, error) {
	decoder, err := NewSourceDecoder(c)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", c.Name, err)
	}

	transformer, err := NewSourceTransformer(c)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", c.Name, err)
	}

	all := append([]RetrieverOption{}, opts...)
	if transformer != nil {
		all = append(all, WithTransformer(transformer))
	}
	if c.Settings.CacheTTL > 0 {
		all = append(all, WithCacheTTL(c.CacheTTL()))
	}

	return NewRetriever(c.Name, decoder, all...)
}

// GamesOf extracts the normalized games of records, skipping values that are
// not games.
func GamesOf(records []Record) []*Game {
	games := make([]*Game, 0, len(records))
	for _, record := range records {
		if game, ok := record.Value.(*Game); ok {
			games = append(games, game)
		}
	}
	return games
}
