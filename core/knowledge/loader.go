package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mudler/xlog"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/ogsenpai/mind/core/memory"
	"github.com/ogsenpai/mind/core/vector"
)

const (
	defaultChunkSize    = 1024
	defaultChunkOverlap = 64

	knowledgeImportance = 0.8
	loaderSource        = "knowledge-loader"
)

// Loader ingests markdown documents into long-term memory. Each document is
// split into chunks, stored as knowledge entries under the document's topic,
// and indexed for semantic retrieval.
type Loader struct {
	store        *memory.Store
	index        *vector.Index
	collection   *Collection
	chunkSize    int
	chunkOverlap int
}

type LoaderOption func(*Loader)

// WithChunking overrides the splitter's chunk size and overlap.
func WithChunking(size, overlap int) LoaderOption {
	return func(l *Loader) {
		if size > 0 {
			l.chunkSize = size
		}
		if overlap >= 0 {
			l.chunkOverlap = overlap
		}
	}
}

// WithCollection mirrors loaded chunks into a document collection so they
// are searchable outside the memory store.
func WithCollection(c *Collection) LoaderOption {
	return func(l *Loader) {
		l.collection = c
	}
}

func NewLoader(store *memory.Store, index *vector.Index, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:        store,
		index:        index,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LoadDirectory ingests every markdown file under dir. The file name minus
// extension becomes the document's topic.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading knowledge directory: %w", err)
	}

	loaded := 0
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("reading %s: %w", path, err)
		}
		topic := strings.TrimSuffix(ent.Name(), ".md")
		n, err := l.LoadMarkdown(ctx, topic, string(data))
		if err != nil {
			return loaded, fmt.Errorf("loading %s: %w", path, err)
		}
		loaded += n
	}

	xlog.Info("Knowledge directory loaded", "dir", dir, "chunks", loaded)
	return loaded, nil
}

// LoadMarkdown splits a document on its headers, chunks each section, and
// stores every chunk as a knowledge entry tagged with the topic. Returns the
// number of chunks stored.
func (l *Loader) LoadMarkdown(ctx context.Context, topic, content string) (int, error) {
	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithChunkSize(l.chunkSize),
		textsplitter.WithChunkOverlap(l.chunkOverlap),
	)

	stored := 0
	for section, body := range Sections(topic, content) {
		chunks, err := splitter.SplitText(body)
		if err != nil {
			return stored, fmt.Errorf("splitting section %q: %w", section, err)
		}

		for _, chunk := range chunks {
			chunk = strings.TrimSpace(chunk)
			if chunk == "" {
				continue
			}

			id := l.store.Store(memory.KindKnowledge, memory.Text(chunk), memory.Metadata{
				Source:       loaderSource,
				Importance:   knowledgeImportance,
				Context:      topic,
				Associations: []string{"knowledge", topic, section},
			})

			ent, err := l.store.Peek(id)
			if err != nil {
				return stored, err
			}
			if _, err := l.index.Add(ctx, ent); err != nil {
				return stored, fmt.Errorf("indexing chunk of %q: %w", topic, err)
			}

			if l.collection != nil {
				if err := l.collection.Add(ctx, id, chunk, map[string]string{"topic": topic, "section": section}); err != nil {
					return stored, fmt.Errorf("mirroring chunk of %q: %w", topic, err)
				}
			}
			stored++
		}
	}

	xlog.Debug("Document loaded", "topic", topic, "chunks", stored)
	return stored, nil
}

// Sections splits a markdown document on its headers. Text before the first
// header falls under the document title passed in.
func Sections(title, content string) map[string]string {
	sections := make(map[string]string)
	current := title
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text != "" {
			sections[current] = text
		}
		body.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "#") {
			flush()
			current = strings.TrimSpace(strings.TrimLeft(line, "# "))
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}
