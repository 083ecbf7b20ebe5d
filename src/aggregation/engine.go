package aggregation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/interfaces"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"
	"candle-aggregator/src/timerange"
)

// -----------------------------------------------------------------------------

// AggregationState is the live state of one symbol: one candle per catalog
// timerange plus the last cumulative volume seen inside the current base window.
// Sealed marks timeranges whose current candle came from the store already
// closed and persisted.
type AggregationState struct {
	Candles             map[string]*models.MCandle
	Sealed              map[string]bool
	LastBaseVolume      float64
	LastBaseQuoteVolume float64
}

func newAggregationState(symbol string, catalog *timerange.Catalog) *AggregationState {
	s := &AggregationState{
		Candles: make(map[string]*models.MCandle, len(catalog.Names())),
		Sealed:  make(map[string]bool),
	}
	for _, name := range catalog.Names() {
		s.Candles[name] = &models.MCandle{Symbol: symbol, Timerange: name}
	}
	return s
}

// -----------------------------------------------------------------------------

// Options tunes window policy. Zero values fall back to the defaults.
type Options struct {
	ContinuityGapMs int64
}

// -----------------------------------------------------------------------------

// Engine turns a tick stream into per-(symbol, timerange) candles.
// A single mutex guards all symbol states for the whole multi-timerange update
// of one tick, including the broadcast and persistence it triggers.
type Engine struct {
	catalog     *timerange.Catalog
	writer      interfaces.ICandleWriter
	broadcaster interfaces.IBroadcaster
	logger      *logger.Logger
	gapMs       int64

	mu     sync.Mutex
	states map[string]*AggregationState

	ticks     atomic.Uint64
	dropped   atomic.Uint64
	rollovers atomic.Uint64
	gaps      atomic.Uint64
	persisted atomic.Uint64
	ignored   atomic.Uint64
}

// -----------------------------------------------------------------------------

// NewEngine creates an engine with zeroed state for every symbol
func NewEngine(
	catalog *timerange.Catalog,
	symbols []string,
	writer interfaces.ICandleWriter,
	broadcaster interfaces.IBroadcaster,
	log *logger.Logger,
	opts Options,
) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("timerange catalog is required")
	}
	if writer == nil || broadcaster == nil {
		return nil, fmt.Errorf("candle writer and broadcaster are required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	gapMs := opts.ContinuityGapMs
	if gapMs <= 0 {
		gapMs = timerange.DefaultContinuityGapMs
	}

	e := &Engine{
		catalog:     catalog,
		writer:      writer,
		broadcaster: broadcaster,
		logger:      log,
		gapMs:       gapMs,
		states:      make(map[string]*AggregationState, len(symbols)),
	}

	for _, symbol := range symbols {
		if symbol == "" {
			return nil, fmt.Errorf("symbol list contains an empty symbol")
		}
		e.states[symbol] = newAggregationState(symbol, catalog)
	}

	return e, nil
}

// -----------------------------------------------------------------------------

// Seed loads bootstrap candles. Rows for unknown symbols or timeranges are
// ignored. The store only holds closed candles, so seeded candles keep their
// stored Close and are sealed: the next window starts without a second closed
// event. The base timerange seeds the volume accumulators.
func (e *Engine) Seed(rows map[models.MCandleKey]models.MCandle) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.catalog.Base().Name
	applied := 0

	for key, row := range rows {
		state, ok := e.states[key.Symbol]
		if !ok {
			e.ignored.Add(1)
			continue
		}
		slot, ok := state.Candles[key.Timerange]
		if !ok || row.OpenTime == 0 {
			e.ignored.Add(1)
			continue
		}

		seeded := row.Copy()
		seeded.Symbol = key.Symbol
		seeded.Timerange = key.Timerange
		*slot = seeded
		state.Sealed[key.Timerange] = true
		applied++

		if key.Timerange == base {
			state.LastBaseVolume = seeded.Volume
			state.LastBaseQuoteVolume = seeded.QuoteVolume
		}
	}

	e.logger.Info("Seeded %d candles (%d ignored)", applied, len(rows)-applied)
	return applied
}

// -----------------------------------------------------------------------------

// Ingest applies one tick to every timerange of its symbol and dispatches the
// resulting events in order: each closed candle is broadcast then persisted,
// each live update is broadcast. Empty-symbol ticks are dropped silently.
// An unknown symbol or a persistence failure is returned as an error.
func (e *Engine) Ingest(ctx context.Context, tick models.MTick) ([]models.MCandleEvent, error) {
	if tick.Symbol == "" {
		e.dropped.Add(1)
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[tick.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", helpers.ErrUnknownSymbol, tick.Symbol)
	}
	e.ticks.Add(1)

	volumeDelta, quoteDelta := e.baseVolumeDelta(state, tick)
	events := make([]models.MCandleEvent, 0, len(state.Candles)+1)

	for _, tr := range e.catalog.Timeranges() {
		candle := state.Candles[tr.Name]

		switch {
		case !candle.IsInitialized():
			e.seedCandle(candle, tr, tick, volumeDelta, quoteDelta)

		case state.Sealed[tr.Name] && !candle.Contains(tick.OpenTime):
			delete(state.Sealed, tr.Name)
			e.seedCandle(candle, tr, tick, volumeDelta, quoteDelta)

		case candle.Contains(tick.OpenTime):
			if state.Sealed[tr.Name] {
				// late tick for a stored window reopens it
				delete(state.Sealed, tr.Name)
				candle.Close = nil
			}
			candle.Low = min(candle.Low, tick.Low)
			candle.High = max(candle.High, tick.High)
			candle.Price = tick.Price
			candle.Volume += volumeDelta
			candle.QuoteVolume += quoteDelta

		default:
			if gap := tick.OpenTime - candle.CloseTime; gap > e.gapMs {
				e.gaps.Add(1)
				e.logger.Warning("Candle is not continuous: %s %s closed at %d, next opens at %d (gap %dms)",
					candle.Symbol, candle.Timerange, candle.CloseTime, tick.OpenTime, gap)
			} else {
				bridged := tick.Open
				candle.Close = &bridged
			}
			e.rollovers.Add(1)
			events = append(events, models.MCandleEvent{Kind: models.EventClosed, Candle: candle.Copy()})
			e.seedCandle(candle, tr, tick, volumeDelta, quoteDelta)
		}

		events = append(events, models.MCandleEvent{Kind: models.EventLive, Candle: candle.Copy()})
	}

	state.LastBaseVolume += volumeDelta
	state.LastBaseQuoteVolume += quoteDelta

	return events, e.dispatch(ctx, events)
}

// -----------------------------------------------------------------------------

// baseVolumeDelta turns the provider's cumulative volume into the increment
// contributed by this tick. A new or uninitialized base window resets the
// accumulators before the delta is taken.
func (e *Engine) baseVolumeDelta(state *AggregationState, tick models.MTick) (float64, float64) {
	base := state.Candles[e.catalog.Base().Name]

	if !base.IsInitialized() || !base.Contains(tick.OpenTime) {
		state.LastBaseVolume = 0
		state.LastBaseQuoteVolume = 0
	}

	return tick.Volume - state.LastBaseVolume, tick.QuoteVolume - state.LastBaseQuoteVolume
}

// -----------------------------------------------------------------------------

func (e *Engine) seedCandle(candle *models.MCandle, tr timerange.Timerange, tick models.MTick, volume, quoteVolume float64) {
	openTime, closeTime := timerange.Bounds(tr.DurationMs, e.catalog.CloseOffsetMs(), tick.OpenTime)

	*candle = models.MCandle{
		Symbol:      tick.Symbol,
		Timerange:   tr.Name,
		OpenTime:    openTime,
		CloseTime:   closeTime,
		Open:        tick.Open,
		High:        tick.High,
		Low:         tick.Low,
		Price:       tick.Price,
		Volume:      volume,
		QuoteVolume: quoteVolume,
	}
}

// -----------------------------------------------------------------------------

func (e *Engine) dispatch(ctx context.Context, events []models.MCandleEvent) error {
	for _, ev := range events {
		e.broadcaster.Broadcast(models.NewCandleMessage(ev.Candle))

		if ev.Kind != models.EventClosed {
			continue
		}
		if err := e.writer.WriteCandle(ctx, ev.Candle); err != nil {
			return helpers.NewDatabaseError(
				fmt.Sprintf("persist closed candle %s %s@%d", ev.Candle.Symbol, ev.Candle.Timerange, ev.Candle.OpenTime), err)
		}
		e.persisted.Add(1)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Run consumes ticks in arrival order until ctx is done or ticks is closed.
// It returns the first fatal ingest error.
func (e *Engine) Run(ctx context.Context, ticks <-chan models.MTick) error {
	e.logger.Info("Aggregation loop started (%d symbols, timeranges %v)", len(e.states), e.catalog.Names())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Aggregation loop stopped")
			return nil
		case tick, ok := <-ticks:
			if !ok {
				e.logger.Info("Tick source closed channel")
				return nil
			}
			if _, err := e.Ingest(ctx, tick); err != nil {
				e.logger.Error("Ingest failed: %v", err)
				return err
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Snapshot returns copies of the live candles of symbol in catalog order
func (e *Engine) Snapshot(symbol string) ([]models.MCandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", helpers.ErrUnknownSymbol, symbol)
	}
	return e.snapshotState(state), nil
}

// SnapshotAll returns copies of every live candle, symbols sorted
func (e *Engine) SnapshotAll() map[string][]models.MCandle {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string][]models.MCandle, len(e.states))
	for symbol, state := range e.states {
		out[symbol] = e.snapshotState(state)
	}
	return out
}

func (e *Engine) snapshotState(state *AggregationState) []models.MCandle {
	out := make([]models.MCandle, 0, len(state.Candles))
	for _, name := range e.catalog.Names() {
		out = append(out, state.Candles[name].Copy())
	}
	return out
}

// -----------------------------------------------------------------------------

// Symbols returns the configured symbols, sorted
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.states))
	for symbol := range e.states {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Stats returns the engine counters
func (e *Engine) Stats() models.MEngineStats {
	return models.MEngineStats{
		TicksIngested:    e.ticks.Load(),
		EmptySymbolDrops: e.dropped.Load(),
		Rollovers:        e.rollovers.Load(),
		ContinuityGaps:   e.gaps.Load(),
		CandlesPersisted: e.persisted.Load(),
		SeedRowsIgnored:  e.ignored.Load(),
	}
}
