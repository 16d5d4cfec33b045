// Package memory keeps a small vector store of past negotiation outcomes
// so new conversations can be grounded in what the user agreed to before.
// Everything here is advisory: failures are logged and never block a
// negotiation.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "negotiations"

// Entry is one concluded negotiation.
type Entry struct {
	Category       string
	SubjectKey     string
	AgreedDuration time.Duration
	Outcome        string // "agreed", "forced_compromise", "cancelled"
	At             time.Time
}

func (e Entry) content() string {
	subject := e.SubjectKey
	if subject == "" {
		subject = "general activity"
	}
	return fmt.Sprintf("%s: %s on %s (%s), outcome %s",
		e.At.Format("2006-01-02"), e.AgreedDuration, subject, e.Category, e.Outcome)
}

type Store struct {
	col *chromem.Collection
}

// New opens a persistent collection at path. The embedding function is
// injectable; pass nil to use chromem's default (OpenAI).
func New(path string, embed chromem.EmbeddingFunc) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, err
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, err
	}

	return &Store{col: col}, nil
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	return s.col.AddDocuments(ctx, []chromem.Document{
		{
			ID:      ulid.Make().String(),
			Content: e.content(),
			Metadata: map[string]string{
				"category": e.Category,
				"subject":  e.SubjectKey,
				"outcome":  e.Outcome,
			},
		},
	}, 1)
}

// Recall returns up to n past-outcome summaries similar to the query.
func (s *Store) Recall(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	if s.col.Count() == 0 {
		return nil, nil
	}
	if count := s.col.Count(); count < n {
		n = count
	}

	docs, err := s.col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Content)
	}
	return out, nil
}
