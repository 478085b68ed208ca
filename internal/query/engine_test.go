package query_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fyrsmithlabs/knowledged/internal/chunker"
	"github.com/fyrsmithlabs/knowledged/internal/document"
	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/fyrsmithlabs/knowledged/internal/generation"
	"github.com/fyrsmithlabs/knowledged/internal/index"
	"github.com/fyrsmithlabs/knowledged/internal/query"
	"github.com/fyrsmithlabs/knowledged/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore serves canned search results.
type fakeStore struct {
	results []vectorstore.SearchResult
	err     error
}

func (s *fakeStore) AddDocuments(_ context.Context, _ []vectorstore.Document) ([]string, error) {
	return nil, nil
}

func (s *fakeStore) Search(_ context.Context, _ string, _ int) ([]vectorstore.SearchResult, error) {
	return s.results, s.err
}

func (s *fakeStore) DeleteWhere(_ context.Context, _ map[string]string) (int, error) { return 0, nil }
func (s *fakeStore) Clear(_ context.Context) error                                   { return nil }
func (s *fakeStore) Count(_ context.Context) (int, error)                            { return len(s.results), nil }
func (s *fakeStore) CollectionName() string                                          { return "fake" }
func (s *fakeStore) Path() string                                                    { return "/tmp/fake" }
func (s *fakeStore) Close() error                                                    { return nil }

// fakeGenerator records prompts and replies with canned answers.
type fakeGenerator struct {
	prompts []string
	answers []string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, req generation.Request) (string, error) {
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.answers) >= len(g.prompts) {
		return g.answers[len(g.prompts)-1], nil
	}
	return "generated answer", nil
}

func newTestEngine(store vectorstore.Store, gen *fakeGenerator) *query.Engine {
	synth := query.NewSynthesizer(gen, 0, zap.NewNop())
	return query.NewEngine(store, synth, zap.NewNop())
}

func TestEngine_Query_RejectsInvalidInput(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeGenerator{})

	_, err := engine.Query(context.Background(), "", 5)
	assert.Error(t, err)

	_, err = engine.Query(context.Background(), "valid question", 0)
	assert.Error(t, err)

	_, err = engine.Query(context.Background(), "valid question", -1)
	assert.Error(t, err)
}

func TestEngine_Query_BuildsSources(t *testing.T) {
	long := strings.Repeat("x", 300)
	store := &fakeStore{results: []vectorstore.SearchResult{
		{ID: "1", Content: long, Score: 0.9, Metadata: map[string]string{"file_name": "a.md"}},
		{ID: "2", Content: "short", Score: 0.5, Metadata: map[string]string{}},
	}}
	gen := &fakeGenerator{}
	engine := newTestEngine(store, gen)

	answer, err := engine.Query(context.Background(), "question", 5)
	require.NoError(t, err)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "a.md", answer.Sources[0].FileName)
	assert.Len(t, answer.Sources[0].Preview, 203)
	assert.True(t, strings.HasSuffix(answer.Sources[0].Preview, "..."))
	assert.Equal(t, "Unknown", answer.Sources[1].FileName)
	assert.Equal(t, "short", answer.Sources[1].Preview)
	require.NotNil(t, answer.Sources[0].Score)
	assert.InDelta(t, 0.9, float64(*answer.Sources[0].Score), 1e-6)

	// The retrieved chunks reach the synthesis prompt.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "short")
	assert.Contains(t, gen.prompts[0], "question")
}

func TestEngine_Query_PreviewKeepsRunesIntact(t *testing.T) {
	// 199 ASCII runes followed by multibyte runes: a byte-based cut at
	// 200 would split the first one.
	content := strings.Repeat("a", 199) + strings.Repeat("日", 5)
	store := &fakeStore{results: []vectorstore.SearchResult{
		{ID: "1", Content: content, Score: 0.9, Metadata: map[string]string{"file_name": "notes.md"}},
	}}
	engine := newTestEngine(store, &fakeGenerator{})

	answer, err := engine.Query(context.Background(), "question", 5)
	require.NoError(t, err)

	require.Len(t, answer.Sources, 1)
	preview := answer.Sources[0].Preview
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, strings.Repeat("a", 199)+"日...", preview)
}

func TestEngine_Query_DeterministicTieBreak(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		{ID: "2", Content: "c2", Score: 0.5, Metadata: map[string]string{"file_name": "b.md"}},
		{ID: "1", Content: "c1", Score: 0.5, Metadata: map[string]string{"file_name": "a.md"}},
		{ID: "9", Content: "c9", Score: 0.5, Metadata: map[string]string{"file_name": "a.md"}},
		{ID: "3", Content: "c3", Score: 0.8, Metadata: map[string]string{"file_name": "z.md"}},
	}}
	engine := newTestEngine(store, &fakeGenerator{})

	answer, err := engine.Query(context.Background(), "question", 5)
	require.NoError(t, err)

	// Similarity first, then file name, then ID.
	names := make([]string, len(answer.Sources))
	for i, src := range answer.Sources {
		names[i] = src.FileName + "/" + src.Preview
	}
	assert.Equal(t, []string{"z.md/c3", "a.md/c1", "a.md/c9", "b.md/c2"}, names)
}

func TestEngine_Query_EmptyRetrievalStillAnswers(t *testing.T) {
	gen := &fakeGenerator{answers: []string{"I found no relevant information."}}
	engine := newTestEngine(&fakeStore{}, gen)

	answer, err := engine.Query(context.Background(), "question", 5)
	require.NoError(t, err)
	assert.Equal(t, "I found no relevant information.", answer.Answer)
	assert.Empty(t, answer.Sources)
	require.Len(t, gen.prompts, 1, "synthesis still runs with empty context")
}

func TestEngine_Query_GenerationFailurePropagates(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		{ID: "1", Content: "chunk", Score: 0.9, Metadata: map[string]string{"file_name": "a.md"}},
	}}
	gen := &fakeGenerator{err: generation.ErrBackendUnavailable}
	engine := newTestEngine(store, gen)

	_, err := engine.Query(context.Background(), "question", 5)
	assert.ErrorIs(t, err, generation.ErrBackendUnavailable)
}

func TestSynthesizer_RefinesAcrossBatches(t *testing.T) {
	gen := &fakeGenerator{answers: []string{"first answer", "refined answer"}}
	synth := query.NewSynthesizer(gen, 20, zap.NewNop())

	answer, err := synth.Synthesize(context.Background(), "question",
		[]string{strings.Repeat("a", 15), strings.Repeat("b", 15)})
	require.NoError(t, err)

	assert.Equal(t, "refined answer", answer)
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "first answer", "refine prompt carries the running answer")
	assert.Contains(t, gen.prompts[1], strings.Repeat("b", 15))
}

func TestSynthesizer_PacksUnderBudget(t *testing.T) {
	gen := &fakeGenerator{}
	synth := query.NewSynthesizer(gen, 1000, zap.NewNop())

	_, err := synth.Synthesize(context.Background(), "question",
		[]string{"chunk one", "chunk two", "chunk three"})
	require.NoError(t, err)
	assert.Len(t, gen.prompts, 1, "chunks fitting the budget share one call")
}

func TestQuery_EndToEnd(t *testing.T) {
	vault := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vault, "a.md"), []byte("The sky is blue."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(vault, "b.md"), []byte("Grass is green."), 0o644))

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		Collection: "test_collection",
		VectorSize: 384,
	}, embeddings.NewHashProvider(384), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	loader := document.NewLoader(document.LoaderConfig{Recursive: true}, zap.NewNop())
	manager := index.NewManager(vault, loader, chunker.NewSentenceChunker(0, 0), store, zap.NewNop())

	_, err = manager.Rebuild(context.Background(), false)
	require.NoError(t, err)

	gen := &fakeGenerator{answers: []string{"The sky is blue."}}
	engine := newTestEngine(store, gen)

	answer, err := engine.Query(context.Background(), "The sky is blue.", 1)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "a.md", answer.Sources[0].FileName)
	assert.Contains(t, gen.prompts[0], "The sky is blue.")
}
