package feed

import (
	"context"
	"log/slog"
)

// Games concatenates the sequences of several retrievers in declaration
// order. Iteration is scanner-style:
//
//	games := feed.From(a, b)
//	for games.Next(ctx) {
//		record := games.Record()
//		...
//	}
//	if err := games.Err(); err != nil {
//		...
//	}
//
// Every pulled record is memoized by position. After Rewind the memoized
// prefix is replayed without touching the network, and pulling continues on
// the live sequences once it runs out.
type Games struct {
	retrievers []*Retriever
	replay     bool

	iterators []Iterator
	current   int

	memo     []Record
	position int
	record   Record
	valid    bool
	err      error
}

type GamesOption func(*Games)

// WithoutReplay makes Rewind drop memoized records and restart every
// retriever from scratch.
func WithoutReplay() GamesOption {
	return func(g *Games) {
		g.replay = false
	}
}

func From(retrievers ...*Retriever) *Games {
	return NewGames(retrievers)
}

func NewGames(retrievers []*Retriever, opts ...GamesOption) *Games {
	g := &Games{
		retrievers: append([]*Retriever(nil), retrievers...),
		replay:     true,
		position:   -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.restart()
	return g
}

func (g *Games) restart() {
	g.iterators = make([]Iterator, len(g.retrievers))
	for i, r := range g.retrievers {
		g.iterators[i] = r.Retrieve()
	}
	g.current = 0
}

// Next advances to the next record. It returns false when every source is
// exhausted or a source failed; Err tells the two apart.
func (g *Games) Next(ctx context.Context) bool {
	if g.err != nil {
		return false
	}

	next := g.position + 1
	if next < len(g.memo) {
		g.position = next
		g.record = g.memo[next]
		g.valid = true
		return true
	}

	for g.current < len(g.iterators) {
		record, err := g.iterators[g.current].Next(ctx)
		if err == ErrDone {
			slog.Debug("Source exhausted", "source", g.retrievers[g.current].Name(), "position", g.position)
			g.current++
			continue
		}
		if err != nil {
			g.err = err
			g.valid = false
			return false
		}

		g.memo = append(g.memo, record)
		g.position = next
		g.record = record
		g.valid = true
		return true
	}

	g.valid = false
	return false
}

// Record returns the record Next last advanced to. Calling it any number of
// times has no side effects.
func (g *Games) Record() Record {
	return g.record
}

// Position is the 0-based index of the current record, -1 before the first
// call to Next.
func (g *Games) Position() int {
	return g.position
}

// Valid reports whether Record holds a current record.
func (g *Games) Valid() bool {
	return g.valid
}

func (g *Games) Err() error {
	return g.err
}

// Rewind moves back to the start. Any error is cleared.
func (g *Games) Rewind() {
	g.position = -1
	g.record = Record{}
	g.valid = false
	g.err = nil

	if g.replay {
		return
	}

	g.memo = nil
	g.restart()
}

// Count sums the declared counts of every source. Counts are not memoized.
func (g *Games) Count(ctx context.Context) (int, error) {
	total := 0
	for _, r := range g.retrievers {
		n, err := r.Count(ctx)
		if err != nil {
			slog.Warn("Source count failed", "source", r.Name(), "error", err)
			return 0, err
		}
		total += n
	}
	return total, nil
}
