package feed

import "context"

// Record is one unit produced by a source. Value holds the raw payload
// (the re-serialized item for XML feeds, the decoded entry object for JSON
// APIs) or whatever a Transformer turned it into.
type Record struct {
	Source string
	Key    string
	Value  any
}

// Transformer converts a raw record before it leaves its Retriever. It is
// called exactly once per record.
type Transformer func(Record) (Record, error)

// Iterator is a lazy, pull-based sequence. Next returns ErrDone when the
// sequence is exhausted; any other error ends the sequence.
type Iterator interface {
	Next(ctx context.Context) (Record, error)
}

// Collect drains it into a slice. It stops at the first error.
func Collect(ctx context.Context, it Iterator) ([]Record, error) {
	var records []Record
	for {
		record, err := it.Next(ctx)
		if err == ErrDone {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}
