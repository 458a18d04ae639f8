package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/cudev/game-feed/app/cache"
)

// Retriever binds one Decoder to its fetch path and an optional Transformer.
// A Retriever is immutable once built; every call to Retrieve starts an
// independent sequence.
type Retriever struct {
	name        string
	decoder     Decoder
	fetcher     Fetcher
	transformer Transformer
}

type retrieverOptions struct {
	transformer Transformer
	store       cache.Store
	ttl         time.Duration
	client      HTTPClient
	fetcher     Fetcher
}

type RetrieverOption func(*retrieverOptions)

func WithTransformer(t Transformer) RetrieverOption {
	return func(o *retrieverOptions) {
		o.transformer = t
	}
}

// WithCache routes every fetch of the retriever through store.
func WithCache(store cache.Store) RetrieverOption {
	return func(o *retrieverOptions) {
		o.store = store
	}
}

func WithCacheTTL(ttl time.Duration) RetrieverOption {
	return func(o *retrieverOptions) {
		o.ttl = ttl
	}
}

func WithHTTPClient(client HTTPClient) RetrieverOption {
	return func(o *retrieverOptions) {
		o.client = client
	}
}

// WithFetcher replaces the whole fetch path. WithCache, WithCacheTTL and
// WithHTTPClient are ignored when it is set.
func WithFetcher(f Fetcher) RetrieverOption {
	return func(o *retrieverOptions) {
		o.fetcher = f
	}
}

func NewRetriever(name string, decoder Decoder, opts ...RetrieverOption) (*Retriever, error) {
	if decoder == nil {
		return nil, fmt.Errorf("retriever %q: decoder is required", name)
	}

	var o retrieverOptions
	for _, opt := range opts {
		opt(&o)
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = NewCacheFetcher(o.client, o.store, o.ttl)
	}

	return &Retriever{
		name:        name,
		decoder:     decoder,
		fetcher:     fetcher,
		transformer: o.transformer,
	}, nil
}

func (r *Retriever) Name() string {
	return r.name
}

func (r *Retriever) Type() SourceType {
	return TypeOf(r.decoder)
}

// Retrieve returns a fresh lazy sequence over the source. Nothing is fetched
// until the first pull.
func (r *Retriever) Retrieve() Iterator {
	return &retrieverIterator{
		retriever: r,
		inner:     r.decoder.Decode(r.fetcher),
	}
}

// Count returns the number of records the source declares. It does not
// affect any sequence returned by Retrieve.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.decoder.Count(ctx, r.fetcher)
}

type retrieverIterator struct {
	retriever *Retriever
	inner     Iterator
}

func (it *retrieverIterator) Next(ctx context.Context) (Record, error) {
	record, err := it.inner.Next(ctx)
	if err != nil {
		return Record{}, err
	}

	record.Source = it.retriever.name
	if it.retriever.transformer == nil {
		return record, nil
	}

	transformed, err := it.retriever.transformer(record)
	if err != nil {
		return Record{}, fmt.Errorf("failed to transform record %q from %s: %w", record.Key, it.retriever.name, err)
	}
	return transformed, nil
}
