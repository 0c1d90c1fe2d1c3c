package search

import (
	"context"
	"errors"
	"testing"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/dusk-indust/jitcap/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// seededCorpus returns a MemStore with a small, varied catalog.
func seededCorpus(t *testing.T) *registry.MemStore {
	t.Helper()
	s := registry.NewMemStore()
	ctx := context.Background()
	for _, m := range []capability.Metadata{
		{Name: "finance_tool", Description: "Access real-time stock prices and financial metrics", Origin: "mcp+stdio://echo/finance", Category: "Financial"},
		{Name: "csv_writer", Description: "Write data to CSV files", Origin: "mcp+stdio://echo/csv", Category: "FileOps"},
		{Name: "google_calendar", Description: "Manage calendar events and schedules", Origin: "mcp://calendar-server", Category: "Admin"},
		{Name: "weather_tool", Description: "Get current weather and forecasts for any location", Origin: "mcp+stdio://npx/-y/server-weather", Category: "Search"},
	} {
		require.NoError(t, s.Register(ctx, m))
	}
	return s
}

// stubStrategy records the last query and returns canned results.
type stubStrategy struct {
	name    string
	queries []string
	err     error
}

func (s *stubStrategy) Search(_ context.Context, query string, _ Options) ([]capability.Candidate, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return []capability.Candidate{{ID: s.name}}, nil
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseMode("BM25")
	require.NoError(t, err)
	assert.Equal(t, ModeBM25, got)

	_, err = ParseMode("vector-hnsw")
	assert.ErrorIs(t, err, capability.ErrUnsupportedMode)
	assert.Equal(t, "unknown", Mode(99).String())
}

func TestDispatcher_SetMode(t *testing.T) {
	d := NewDispatcher(registry.NewMemStore(), zaptest.NewLogger(t))
	assert.Equal(t, ModeSemantic, d.Mode())

	require.NoError(t, d.SetMode("bm25"))
	assert.Equal(t, ModeBM25, d.Mode())

	err := d.SetMode("exotic")
	assert.ErrorIs(t, err, capability.ErrUnsupportedMode)
	assert.Equal(t, ModeBM25, d.Mode(), "failed SetMode must not change the mode")
}

func TestDispatcher_SetModeUnregistered(t *testing.T) {
	d, err := NewDispatcherWith(map[Mode]Strategy{ModeSemantic: &stubStrategy{name: "sem"}}, nil)
	require.NoError(t, err)

	err = d.SetMode("bm25")
	assert.ErrorIs(t, err, capability.ErrUnsupportedMode)
}

func TestNewDispatcherWith_RequiresDefault(t *testing.T) {
	_, err := NewDispatcherWith(map[Mode]Strategy{ModeBM25: &stubStrategy{}}, nil)
	require.Error(t, err)
}

func TestDispatcher_Routing(t *testing.T) {
	sem := &stubStrategy{name: "sem"}
	bm := &stubStrategy{name: "bm"}
	d, err := NewDispatcherWith(map[Mode]Strategy{ModeSemantic: sem, ModeBM25: bm}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := d.Search(ctx, "q1", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, "sem", got[0].ID)

	got, err = d.Search(ctx, "q2", "bm25", Options{})
	require.NoError(t, err)
	assert.Equal(t, "bm", got[0].ID)

	// Unknown and unregistered modes fall back to the default strategy.
	got, err = d.Search(ctx, "q3", "exotic", Options{})
	require.NoError(t, err)
	assert.Equal(t, "sem", got[0].ID)

	got, err = d.Search(ctx, "q4", "category", Options{})
	require.NoError(t, err)
	assert.Equal(t, "sem", got[0].ID)

	assert.Equal(t, []string{"q1", "q3", "q4"}, sem.queries)
	assert.Equal(t, []string{"q2"}, bm.queries)
}

func TestDispatcher_PropagatesStrategyError(t *testing.T) {
	boom := errors.New("backend down")
	d, err := NewDispatcherWith(map[Mode]Strategy{ModeSemantic: &stubStrategy{err: boom}}, nil)
	require.NoError(t, err)

	_, err = d.Search(context.Background(), "q", "", Options{})
	assert.ErrorIs(t, err, boom)
}

func TestSemantic_RanksRelevantFirst(t *testing.T) {
	s := NewSemantic(seededCorpus(t))

	got, err := s.Search(context.Background(), "stock prices", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "finance_tool", got[0].ID)
	assert.Equal(t, "Financial", got[0].Category)
	assert.Equal(t, "mcp+stdio://echo/finance", got[0].Origin)
	require.NotNil(t, got[0].Distance)
	assert.Less(t, *got[0].Distance, 1.0)
}

func TestSemantic_NoOverlapIsEmpty(t *testing.T) {
	s := NewSemantic(seededCorpus(t))
	got, err := s.Search(context.Background(), "quantum entanglement", Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSemantic_EmptyCorpus(t *testing.T) {
	s := NewSemantic(registry.NewMemStore())
	got, err := s.Search(context.Background(), "no such capability exists", Options{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSemantic_RespectsLimit(t *testing.T) {
	s := NewSemantic(seededCorpus(t))
	got, err := s.Search(context.Background(), "data files calendar weather stock", Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestBM25_RanksRelevantFirst(t *testing.T) {
	b := NewBM25(seededCorpus(t))

	got, err := b.Search(context.Background(), "write csv", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "csv_writer", got[0].ID)
	require.NotNil(t, got[0].Distance)
}

func TestBM25_OrderedByDistance(t *testing.T) {
	b := NewBM25(seededCorpus(t))
	got, err := b.Search(context.Background(), "weather forecasts calendar", Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.LessOrEqual(t, *got[0].Distance, *got[1].Distance)
	assert.Equal(t, "weather_tool", got[0].ID)
}

func TestCategory_MatchesQueryOrOption(t *testing.T) {
	c := NewCategory(seededCorpus(t))
	ctx := context.Background()

	got, err := c.Search(ctx, "financial", Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "finance_tool", got[0].ID)
	assert.Nil(t, got[0].Distance)

	got, err = c.Search(ctx, "anything", Options{Category: "FileOps"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "csv_writer", got[0].ID)

	got, err = c.Search(ctx, "  ", Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"stock", "price", "financial", "data"}, tokenize("Stock prices, financial data!"))
	assert.Equal(t, []string{"access", "csv", "file"}, tokenize("access the CSV files"))
	assert.Equal(t, []string{"finance", "tool"}, tokenize("finance_tool"))
}
