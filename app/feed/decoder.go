package feed

import "context"

type SourceType string

const (
	SourceTypeXML  SourceType = "xml"
	SourceTypeJSON SourceType = "json"
)

// Decoder turns the raw bodies of one source into a lazy sequence of raw
// records. The set of decoders is closed: XMLDecoder and JSONDecoder.
type Decoder interface {
	// Decode returns a fresh sequence. Nothing is fetched before the first
	// call to Next.
	Decode(f Fetcher) Iterator
	// Count reports the number of records the source declares, without
	// consuming any sequence.
	Count(ctx context.Context, f Fetcher) (int, error)

	sourceType() SourceType
}

// TypeOf reports which variant d is.
func TypeOf(d Decoder) SourceType {
	return d.sourceType()
}
