package browse

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/providers/books"
)

const DefaultDebounce = 450 * time.Millisecond

const (
	ResetFailedMessage = "Failed to load books. Please try again."
	MoreFailedMessage  = "Failed to load more books."
)

type Options struct {
	PageSize int
	Debounce time.Duration
	Logger   *zap.Logger
}

// Snapshot is an immutable view of the coordinator state handed to the UI.
type Snapshot struct {
	Category    string
	SearchText  string
	SearchTerm  string
	Books       []catalog.Book
	Total       int
	TotalKnown  bool
	LoadedCount int
	Page        int
	Loading     bool
	HasMore     bool
	Err         error
	ErrMessage  string
	Generation  uint64
	Closed      bool
}

// pendingSearch is a debounced term together with the category epoch it was
// typed in.
type pendingSearch struct {
	term  string
	epoch uint64
}

// Coordinator owns the filter state and the accumulated listing of one
// browsing session. It decides when to fetch, discards responses that belong
// to superseded filters, and publishes snapshots after every change.
type Coordinator struct {
	provider  books.Provider
	pageSize  int
	logger    *zap.Logger
	debouncer *Debouncer[pendingSearch]

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	filters     Filters
	rawText     string
	searchEpoch uint64
	page        int
	results     *catalog.ResultSet
	totalKnown  bool
	hasMore     bool
	loading     bool
	err         error
	errMessage  string
	generation  uint64
	cancelFetch context.CancelFunc
	closed      bool
	updates     chan Snapshot
}

func New(provider books.Provider, options Options) *Coordinator {
	if options.PageSize <= 0 {
		options.PageSize = DefaultPageSize
	}
	if options.Debounce <= 0 {
		options.Debounce = DefaultDebounce
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	coordinator := &Coordinator{
		provider: provider,
		pageSize: options.PageSize,
		logger:   options.Logger,
		ctx:      ctx,
		cancel:   cancel,
		page:     1,
		results:  catalog.NewResultSet(),
		hasMore:  true,
		updates:  make(chan Snapshot, 1),
	}
	coordinator.debouncer = NewDebouncer(options.Debounce, coordinator.commitSearch)
	return coordinator
}

// Updates delivers the latest snapshot after each state change. Only the
// newest undelivered snapshot is kept. The channel is closed by Close.
func (coordinator *Coordinator) Updates() <-chan Snapshot {
	return coordinator.updates
}

func (coordinator *Coordinator) Snapshot() Snapshot {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return coordinator.snapshotLocked()
}

// SetCategory switches genre. The search text is cleared and pagination
// restarts at page one.
func (coordinator *Coordinator) SetCategory(category string) {
	coordinator.debouncer.Cancel()

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if coordinator.closed {
		return
	}

	coordinator.rawText = ""
	coordinator.searchEpoch++
	coordinator.filters = Filters{Category: strings.TrimSpace(category)}
	coordinator.logger.Debug("category selected", zap.String("category", coordinator.filters.Category))
	coordinator.restartLocked()
}

// SetSearchText records raw input. The fetch filters change only after the
// input has been idle for the debounce delay.
func (coordinator *Coordinator) SetSearchText(raw string) {
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return
	}
	changed := coordinator.rawText != raw
	coordinator.rawText = raw
	pending := pendingSearch{term: strings.TrimSpace(raw), epoch: coordinator.searchEpoch}
	if changed {
		coordinator.notifyLocked()
	}
	coordinator.mu.Unlock()

	if changed {
		coordinator.debouncer.Trigger(pending)
	}
}

// commitSearch applies a debounced term. Terms typed before the latest
// category change are dropped.
func (coordinator *Coordinator) commitSearch(pending pendingSearch) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if coordinator.closed || pending.epoch != coordinator.searchEpoch {
		return
	}
	term := pending.term
	if term == coordinator.filters.SearchTerm {
		return
	}

	coordinator.filters.SearchTerm = term
	coordinator.logger.Debug("search committed",
		zap.String("category", coordinator.filters.Category),
		zap.String("term", term),
	)
	coordinator.restartLocked()
}

// LoadMore requests the next page when the end of the list becomes visible.
// It returns false when a fetch is already running or nothing is left.
func (coordinator *Coordinator) LoadMore() bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.closed || coordinator.loading || !coordinator.hasMore || coordinator.filters.Category == "" {
		return false
	}
	coordinator.startLocked(coordinator.page, false)
	return true
}

// Close tears the session down. In-flight responses are dropped and no
// further snapshots are published.
func (coordinator *Coordinator) Close() {
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return
	}
	coordinator.closed = true
	coordinator.cancel()
	close(coordinator.updates)
	coordinator.mu.Unlock()

	coordinator.debouncer.Stop()
}

func (coordinator *Coordinator) restartLocked() {
	coordinator.generation++
	if coordinator.cancelFetch != nil {
		coordinator.cancelFetch()
		coordinator.cancelFetch = nil
	}

	coordinator.results = catalog.NewResultSet()
	coordinator.page = 1
	coordinator.totalKnown = false
	coordinator.hasMore = true
	coordinator.loading = false
	coordinator.err = nil
	coordinator.errMessage = ""

	if coordinator.filters.Category == "" {
		coordinator.notifyLocked()
		return
	}
	coordinator.startLocked(1, true)
}

func (coordinator *Coordinator) startLocked(page int, reset bool) {
	coordinator.loading = true
	generation := coordinator.generation
	filters := coordinator.filters

	fetchCtx, cancel := context.WithCancel(coordinator.ctx)
	coordinator.cancelFetch = cancel
	coordinator.notifyLocked()

	go coordinator.run(fetchCtx, cancel, generation, filters, page, reset)
}

func (coordinator *Coordinator) run(ctx context.Context, cancel context.CancelFunc, generation uint64, filters Filters, page int, reset bool) {
	defer cancel()

	pages, err := FetchPages(ctx, coordinator.provider, Requests(filters, page))

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.closed || generation != coordinator.generation {
		coordinator.logger.Debug("discarding stale listing",
			zap.Uint64("generation", generation),
			zap.Int("page", page),
		)
		return
	}
	coordinator.loading = false

	if err != nil {
		coordinator.err = err
		coordinator.hasMore = false
		if reset {
			coordinator.results.Reset(0)
			coordinator.totalKnown = true
			coordinator.errMessage = ResetFailedMessage
		} else {
			coordinator.errMessage = MoreFailedMessage
		}
		coordinator.logger.Warn("failed to load books",
			zap.String("category", filters.Category),
			zap.String("term", filters.SearchTerm),
			zap.Int("page", page),
			zap.Error(err),
		)
		coordinator.notifyLocked()
		return
	}

	outcome := coordinator.results.Merge(pages, reset)
	coordinator.totalKnown = true
	coordinator.err = nil
	coordinator.errMessage = ""

	if outcome.Exhausted {
		coordinator.hasMore = false
	} else {
		coordinator.hasMore = catalog.HasMore(totals(pages), page, coordinator.pageSize)
		coordinator.page = page + 1
	}

	coordinator.logger.Debug("listing merged",
		zap.String("category", filters.Category),
		zap.Int("page", page),
		zap.Int("added", outcome.Added),
		zap.Int("loaded", coordinator.results.Len()),
		zap.Int("total", coordinator.results.Total()),
		zap.Bool("has_more", coordinator.hasMore),
	)
	coordinator.notifyLocked()
}

func (coordinator *Coordinator) notifyLocked() {
	if coordinator.closed {
		return
	}
	snapshot := coordinator.snapshotLocked()
	select {
	case <-coordinator.updates:
	default:
	}
	select {
	case coordinator.updates <- snapshot:
	default:
	}
}

func (coordinator *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		Category:    coordinator.filters.Category,
		SearchText:  coordinator.rawText,
		SearchTerm:  coordinator.filters.SearchTerm,
		Books:       coordinator.results.Books(),
		Total:       coordinator.results.Total(),
		TotalKnown:  coordinator.totalKnown,
		LoadedCount: coordinator.results.Len(),
		Page:        coordinator.page,
		Loading:     coordinator.loading,
		HasMore:     coordinator.hasMore,
		Err:         coordinator.err,
		ErrMessage:  coordinator.errMessage,
		Generation:  coordinator.generation,
		Closed:      coordinator.closed,
	}
}
