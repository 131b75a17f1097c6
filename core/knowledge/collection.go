package knowledge

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/ogsenpai/mind/core/vector"
)

// Result is one document returned from a collection search.
type Result struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Collection is an in-process document collection for knowledge search.
// Embeddings come from the same embedder the vector index uses, so both
// views of a document agree.
type Collection struct {
	name       string
	db         *chromem.DB
	collection *chromem.Collection
	embedder   vector.Embedder
}

func NewCollection(name string, embedder vector.Embedder) (*Collection, error) {
	db := chromem.NewDB()

	c := &Collection{
		name:     name,
		db:       db,
		embedder: embedder,
	}

	collection, err := db.GetOrCreateCollection(name, nil, c.embedding())
	if err != nil {
		return nil, err
	}
	c.collection = collection

	return c, nil
}

func (c *Collection) embedding() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return c.embedder.Embed(ctx, text)
	}
}

// Add stores a document under the given id.
func (c *Collection) Add(ctx context.Context, id, content string, metadata map[string]string) error {
	if content == "" {
		return fmt.Errorf("empty document")
	}
	return c.collection.AddDocuments(ctx, []chromem.Document{
		{
			ID:       id,
			Content:  content,
			Metadata: metadata,
		},
	}, runtime.NumCPU())
}

// Search returns up to limit documents ranked by similarity to the query.
// Asking for more documents than the collection holds is not an error.
func (c *Collection) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	count := c.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	res, err := c.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(res))
	for _, r := range res {
		results = append(results, Result{
			ID:         r.ID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		})
	}
	return results, nil
}

// Count reports how many documents the collection holds.
func (c *Collection) Count() int {
	return c.collection.Count()
}

// Reset drops every document and recreates the collection.
func (c *Collection) Reset() error {
	if err := c.db.DeleteCollection(c.name); err != nil {
		return err
	}
	collection, err := c.db.GetOrCreateCollection(c.name, nil, c.embedding())
	if err != nil {
		return err
	}
	c.collection = collection
	return nil
}
