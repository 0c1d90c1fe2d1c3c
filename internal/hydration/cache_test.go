package hydration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/dusk-indust/jitcap/internal/registry"
	"github.com/dusk-indust/jitcap/internal/search"
	"github.com/dusk-indust/jitcap/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	financeOrigin = "mcp+stdio://echo/finance"
	officeOrigin  = "mcp+stdio://echo/office"
	weatherOrigin = "mcp://echo/weather"
)

var (
	financeDesc = capability.Descriptor{Command: "echo", Args: []string{"finance"}}
	officeDesc  = capability.Descriptor{Command: "echo", Args: []string{"office"}}
	weatherDesc = capability.Descriptor{Command: "echo", Args: []string{"weather"}}
)

func tool(name string) transport.Tool {
	return transport.Tool{
		Schema: capability.Schema{
			Name:        name,
			Description: name + " tool",
			InputSchema: []byte(`{"type":"object"}`),
		},
		Handler: transport.EchoHandler(name),
	}
}

type fixture struct {
	store     *registry.MemStore
	transport *transport.StaticTransport
}

func newFixture(t *testing.T, entries ...capability.Metadata) *fixture {
	t.Helper()
	f := &fixture{store: registry.NewMemStore(), transport: transport.NewStaticTransport()}
	for _, m := range entries {
		require.NoError(t, f.store.Register(context.Background(), m))
	}
	f.transport.Serve(financeDesc, transport.Endpoint{Tools: []transport.Tool{tool("finance_tool")}})
	f.transport.Serve(officeDesc, transport.Endpoint{Tools: []transport.Tool{tool("csv_writer"), tool("csv_reader")}})
	return f
}

func (f *fixture) cache(t *testing.T, mutate ...func(*Config)) *Cache {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := Config{
		Registry:  f.store,
		Search:    search.NewDispatcher(f.store, logger),
		Transport: f.transport,
		Logger:    logger,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg)
}

var (
	financeMeta = capability.Metadata{
		Name:        "finance_tool",
		Description: "Access real-time stock prices and financial metrics",
		Origin:      financeOrigin,
		Category:    "Financial",
	}
	writerMeta = capability.Metadata{
		Name:        "csv_writer",
		Description: "Write rows to CSV files",
		Origin:      officeOrigin,
		Category:    "FileOps",
	}
	readerMeta = capability.Metadata{
		Name:        "csv_reader",
		Description: "Read rows from CSV files",
		Origin:      officeOrigin,
		Category:    "FileOps",
	}
)

func TestFinanceScenario(t *testing.T) {
	f := newFixture(t, financeMeta)
	c := f.cache(t)
	ctx := context.Background()

	previews, err := c.Discover(ctx, "stock prices", 5)
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, capability.Preview{
		Name:        "finance_tool",
		Description: financeMeta.Description,
		Category:    "Financial",
		Origin:      financeOrigin,
	}, previews[0])
	assert.Empty(t, c.ActiveNames(), "discover must not hydrate")
	assert.Zero(t, f.transport.Fetches(financeDesc))

	schemas, err := c.DiscoverAndHydrate(ctx, "stock prices", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance_tool"}, capability.Names(schemas))

	res, err := c.Execute(ctx, "finance_tool", map[string]any{"symbol": "ACME"})
	require.NoError(t, err)
	assert.Equal(t, "finance_tool(symbol=ACME)", res.Text)

	c.Clear()
	_, err = c.Execute(ctx, "finance_tool", map[string]any{"symbol": "ACME"})
	assert.ErrorIs(t, err, capability.ErrNotHydrated)
}

func TestDiscover_EmptyRegistry(t *testing.T) {
	c := newFixture(t).cache(t)

	previews, err := c.Discover(context.Background(), "no such capability exists", 5)
	require.NoError(t, err)
	assert.NotNil(t, previews)
	assert.Empty(t, previews)

	schemas, err := c.DiscoverAndHydrate(context.Background(), "no such capability exists", 5)
	require.NoError(t, err)
	assert.Empty(t, schemas)
}

func TestDiscoverAndHydrate_FetchesOriginOnce(t *testing.T) {
	f := newFixture(t, financeMeta)
	c := f.cache(t)
	ctx := context.Background()

	first, err := c.DiscoverAndHydrate(ctx, "stock prices", 5)
	require.NoError(t, err)
	second, err := c.DiscoverAndHydrate(ctx, "financial metrics", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.transport.Fetches(financeDesc))
	assert.Equal(t, []string{financeOrigin}, c.HydratedOrigins())
}

func TestDiscoverAndHydrate_SharedOriginDeduplicated(t *testing.T) {
	f := newFixture(t, writerMeta, readerMeta)
	c := f.cache(t)

	schemas, err := c.DiscoverAndHydrate(context.Background(), "csv files", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"csv_writer", "csv_reader"}, capability.Names(schemas))
	assert.Len(t, schemas, 2)
	assert.Equal(t, 1, f.transport.Fetches(officeDesc))
	assert.Equal(t, []string{"csv_reader", "csv_writer"}, c.ActiveNames())
}

func TestDiscoverAndHydrate_IsolatesBadOrigins(t *testing.T) {
	f := newFixture(t,
		financeMeta,
		capability.Metadata{Name: "shady_quotes", Description: "Stock prices from a shady source", Origin: "mcp+stdio://rm/-rf/~"},
		capability.Metadata{Name: "broken_quotes", Description: "Stock prices, broken origin", Origin: "mcp://"},
		capability.Metadata{Name: "orphan_quotes", Description: "Stock prices with no origin"},
		capability.Metadata{Name: "weather_quotes", Description: "Stock prices and weather", Origin: weatherOrigin},
	)
	f.transport.Serve(weatherDesc, transport.Endpoint{Err: errors.New("process exited")})
	c := f.cache(t)

	schemas, report, err := c.DiscoverAndHydrateReport(context.Background(), "stock prices", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance_tool"}, capability.Names(schemas))

	require.Len(t, report.Failures, 4)
	assert.False(t, report.OK())
	byName := make(map[string]Failure)
	for _, fl := range report.Failures {
		byName[fl.Candidate] = fl
	}
	assert.ErrorIs(t, byName["shady_quotes"].Err, capability.ErrDisallowedCommand)
	assert.ErrorIs(t, byName["broken_quotes"].Err, capability.ErrMalformedURI)
	assert.ErrorIs(t, byName["orphan_quotes"].Err, ErrNoOrigin)
	assert.ErrorIs(t, byName["weather_quotes"].Err, capability.ErrTransport)
	assert.ErrorIs(t, report.Err(), capability.ErrDisallowedCommand)

	assert.Equal(t, []string{financeOrigin}, c.HydratedOrigins(), "failed origins must not be marked hydrated")
}

func TestDiscoverAndHydrate_SearchError(t *testing.T) {
	boom := errors.New("index offline")
	c := New(Config{Search: failingSearch{err: boom}, Transport: transport.NewStaticTransport()})

	_, err := c.DiscoverAndHydrate(context.Background(), "q", 5)
	assert.ErrorIs(t, err, boom)
	_, err = c.Discover(context.Background(), "q", 5)
	assert.ErrorIs(t, err, boom)
}

func TestExecute_NotHydrated(t *testing.T) {
	f := newFixture(t, financeMeta, writerMeta)
	c := f.cache(t)
	ctx := context.Background()

	_, err := c.Execute(ctx, "finance_tool", nil)
	var nh *capability.NotHydratedError
	require.ErrorAs(t, err, &nh)
	assert.Equal(t, "finance_tool", nh.Name)
	assert.Empty(t, nh.Active)

	_, err = c.DiscoverAndHydrate(ctx, "csv files", 5)
	require.NoError(t, err)

	_, err = c.Execute(ctx, "finance_tool", nil)
	require.ErrorAs(t, err, &nh)
	assert.Equal(t, []string{"csv_reader", "csv_writer"}, nh.Active)
	assert.Contains(t, err.Error(), "csv_reader, csv_writer")
}

func TestExecute_TransportErrorReturned(t *testing.T) {
	f := newFixture(t, financeMeta)
	c := f.cache(t)
	ctx := context.Background()

	_, err := c.DiscoverAndHydrate(ctx, "stock prices", 5)
	require.NoError(t, err)

	f.transport.Serve(financeDesc, transport.Endpoint{Err: errors.New("crashed")})
	_, err = c.Execute(ctx, "finance_tool", nil)
	assert.ErrorIs(t, err, capability.ErrTransport)
	assert.True(t, c.IsHydrated("finance_tool"), "execution failure must not evict")
}

func TestClear(t *testing.T) {
	f := newFixture(t, financeMeta, writerMeta, readerMeta)
	c := f.cache(t)
	ctx := context.Background()

	_, err := c.DiscoverAndHydrate(ctx, "stock prices", 5)
	require.NoError(t, err)
	_, err = c.DiscoverAndHydrate(ctx, "csv files", 5)
	require.NoError(t, err)
	names := c.ActiveNames()
	require.Len(t, names, 3)

	c.Clear()
	for _, n := range names {
		assert.False(t, c.IsHydrated(n))
		_, err := c.Execute(ctx, n, nil)
		assert.ErrorIs(t, err, capability.ErrNotHydrated)
	}
	assert.Empty(t, c.ActiveSchemas())
	assert.Empty(t, c.HydratedOrigins())

	_, err = c.DiscoverAndHydrate(ctx, "stock prices", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, f.transport.Fetches(financeDesc), "cleared origin is fetched again")
}

func TestActiveSchemasSorted(t *testing.T) {
	f := newFixture(t, financeMeta, writerMeta, readerMeta)
	c := f.cache(t)
	ctx := context.Background()

	_, err := c.DiscoverAndHydrate(ctx, "csv files", 5)
	require.NoError(t, err)
	_, err = c.DiscoverAndHydrate(ctx, "stock prices", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"csv_reader", "csv_writer", "finance_tool"}, capability.Names(c.ActiveSchemas()))
	assert.JSONEq(t, `{"type":"object"}`, string(c.ActiveSchemas()[0].InputSchema))
}

func TestHydrateByName_EagerSiblings(t *testing.T) {
	f := newFixture(t, writerMeta, readerMeta)
	c := f.cache(t)

	s, err := c.HydrateByName(context.Background(), "csv_writer")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "csv_writer", s.Name)
	assert.True(t, c.IsHydrated("csv_reader"))
	assert.Equal(t, []string{officeOrigin}, c.HydratedOrigins())
}

func TestHydrateByName_DeferredSiblings(t *testing.T) {
	f := newFixture(t, writerMeta, readerMeta)
	c := f.cache(t, func(cfg *Config) { cfg.Siblings = SiblingsDeferred })
	ctx := context.Background()

	s, err := c.HydrateByName(ctx, "csv_writer")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, []string{"csv_writer"}, c.ActiveNames())
	assert.Equal(t, []string{officeOrigin}, c.HydratedOrigins())

	schemas, err := c.DiscoverAndHydrate(ctx, "read csv rows", 5)
	require.NoError(t, err)
	assert.Contains(t, capability.Names(schemas), "csv_reader")
	assert.True(t, c.IsHydrated("csv_reader"))
	assert.Equal(t, 1, f.transport.Fetches(officeDesc))
}

func TestHydrateByName_Misses(t *testing.T) {
	f := newFixture(t, financeMeta, capability.Metadata{Name: "ghost_tool", Origin: financeOrigin})
	c := f.cache(t)
	ctx := context.Background()

	s, err := c.HydrateByName(ctx, "unregistered")
	require.NoError(t, err)
	assert.Nil(t, s)

	// The origin serves no tool named ghost_tool; the fetch still counts.
	s, err = c.HydrateByName(ctx, "ghost_tool")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, []string{financeOrigin}, c.HydratedOrigins())
	assert.True(t, c.IsHydrated("finance_tool"))
}

func TestHydrateByName_Disallowed(t *testing.T) {
	f := newFixture(t, capability.Metadata{Name: "wipe", Origin: "mcp+stdio://bash/-c/rm"})
	c := f.cache(t)

	_, err := c.HydrateByName(context.Background(), "wipe")
	assert.ErrorIs(t, err, capability.ErrDisallowedCommand)
	assert.Empty(t, c.HydratedOrigins())
}

func TestConcurrentHydrationSharesFetch(t *testing.T) {
	f := newFixture(t, financeMeta)
	gated := newGatedTransport(f.transport)
	c := f.cache(t, func(cfg *Config) { cfg.Transport = gated })
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			schemas, err := c.DiscoverAndHydrate(ctx, "stock prices", 5)
			assert.NoError(t, err)
			assert.Equal(t, []string{"finance_tool"}, capability.Names(schemas))
		}()
	}
	<-gated.started
	close(gated.release)
	wg.Wait()

	assert.Equal(t, int32(1), gated.fetches.Load())
}

func TestClearDuringHydrationDiscardsResult(t *testing.T) {
	f := newFixture(t, financeMeta)
	gated := newGatedTransport(f.transport)
	c := f.cache(t, func(cfg *Config) { cfg.Transport = gated })

	type outcome struct {
		schemas []capability.Schema
		report  *Report
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		s, r, err := c.DiscoverAndHydrateReport(context.Background(), "stock prices", 5)
		done <- outcome{s, r, err}
	}()

	<-gated.started
	c.Clear()
	close(gated.release)
	got := <-done

	require.NoError(t, got.err)
	assert.Empty(t, got.schemas)
	require.Len(t, got.report.Failures, 1)
	assert.ErrorIs(t, got.report.Failures[0].Err, ErrCleared)
	assert.False(t, c.IsHydrated("finance_tool"))
	assert.Empty(t, c.HydratedOrigins())
}

func TestHydrationStartedAfterClearFetchesAgain(t *testing.T) {
	f := newFixture(t, financeMeta)
	gated := newGatedTransport(f.transport)
	c := f.cache(t, func(cfg *Config) { cfg.Transport = gated })

	type outcome struct {
		schemas []capability.Schema
		report  *Report
	}
	run := func() <-chan outcome {
		ch := make(chan outcome, 1)
		go func() {
			s, r, err := c.DiscoverAndHydrateReport(context.Background(), "stock prices", 5)
			assert.NoError(t, err)
			ch <- outcome{s, r}
		}()
		return ch
	}

	before := run()
	waitStarted(t, gated)
	c.Clear()

	after := run()
	waitStarted(t, gated)
	close(gated.release)

	old := <-before
	assert.Empty(t, old.schemas)
	require.Len(t, old.report.Failures, 1)
	assert.ErrorIs(t, old.report.Failures[0].Err, ErrCleared)

	fresh := <-after
	assert.True(t, fresh.report.OK())
	assert.Equal(t, []string{"finance_tool"}, capability.Names(fresh.schemas))
	assert.True(t, c.IsHydrated("finance_tool"))
	assert.Equal(t, int32(2), gated.fetches.Load())
}

func TestCancelledCallerDoesNotAbortSharedFetch(t *testing.T) {
	f := newFixture(t, financeMeta)
	gated := newGatedTransport(f.transport)
	c := f.cache(t, func(cfg *Config) { cfg.Transport = gated })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Report, 1)
	go func() {
		_, r, err := c.DiscoverAndHydrateReport(ctx, "stock prices", 5)
		assert.NoError(t, err)
		done <- r
	}()

	waitStarted(t, gated)
	cancel()
	report := <-done
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, context.Canceled)

	close(gated.release)
	require.Eventually(t, func() bool {
		return len(c.HydratedOrigins()) == 1
	}, time.Second, 5*time.Millisecond)

	schemas, err := c.DiscoverAndHydrate(context.Background(), "stock prices", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance_tool"}, capability.Names(schemas))
	assert.Equal(t, int32(1), gated.fetches.Load())
}

func waitStarted(t *testing.T, g *gatedTransport) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("schema fetch did not start")
	}
}

// gatedTransport blocks schema fetches until release is closed.
type gatedTransport struct {
	transport.Transport
	started chan struct{}
	release chan struct{}
	fetches atomic.Int32
}

func newGatedTransport(next transport.Transport) *gatedTransport {
	return &gatedTransport{
		Transport: next,
		started:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (g *gatedTransport) FetchSchemas(ctx context.Context, d capability.Descriptor) ([]capability.Schema, error) {
	g.fetches.Add(1)
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	return g.Transport.FetchSchemas(ctx, d)
}

type failingSearch struct{ err error }

func (s failingSearch) Search(context.Context, string, string, search.Options) ([]capability.Candidate, error) {
	return nil, s.err
}
