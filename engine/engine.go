// Package engine implements ParqueDB's embedded storage engine: the
// write path (create/update/delete), the read path (get/find with
// filter/sort/populate), the background compactor, and the history/
// as-of replay engine, all layered over wal, pending, schema, and
// parquetfile.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/parquedb/parquedb/cache"
	"github.com/parquedb/parquedb/internal/parqueerr"
	"github.com/parquedb/parquedb/pending"
	"github.com/parquedb/parquedb/schema"
	"github.com/parquedb/parquedb/storage"
	"github.com/parquedb/parquedb/wal"
)

// EngineVersion is stamped into every Parquet file's footer key/value
// metadata under "version".
const EngineVersion = "parquedb/0.1"

// Config configures a new Engine.
type Config struct {
	Backend  storage.Backend
	Registry *schema.Registry // optional; nil means no schema validation
	Logger   *slog.Logger     // optional; defaults to slog.Default()

	CacheCapacity int           // bytes; 0 uses a small built-in default
	CacheTTL      time.Duration // 0 disables time-based cache expiry

	RowGroupSize int // rows per Parquet row group; 0 uses parquetfile's default

	// CompactionMinAge is how old a pending entry must be before the
	// compactor will fold it in, to avoid racing a live writer.
	CompactionMinAge time.Duration
	// CompactionMaxPending triggers compaction for a namespace once it
	// has at least this many pending entries, regardless of age.
	CompactionMaxPending int

	// Metrics, if non-nil, registers mutation/compaction/cache counters
	// with this registerer. Left nil, the engine has no observability
	// dependency.
	Metrics prometheus.Registerer

	// Clock overrides time.Now, for deterministic tests.
	Clock func() time.Time
}

const defaultCacheCapacity = 64 << 20 // 64 MiB

// Engine is a single embedded ParqueDB instance over one storage
// backend. Safe for concurrent use; mutations to the same namespace
// serialize internally, mutations to different namespaces run
// independently.
type Engine struct {
	backend  storage.Backend
	wal      *wal.Log
	pending  *pending.Store
	registry *schema.Registry
	cache    *cache.Cache
	log      *slog.Logger
	clock    func() time.Time

	rowGroupSize     int
	compactionMinAge time.Duration
	compactionMaxN   int

	metrics *metricsSet

	nsLocksMu sync.Mutex
	nsLocks   map[string]*sync.Mutex

	disposeOnce sync.Once
}

// New opens an Engine over cfg.Backend.
func New(cfg Config) *Engine {
	if cfg.Backend == nil {
		panic("engine: Config.Backend is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cacheCap := cfg.CacheCapacity
	if cacheCap <= 0 {
		cacheCap = defaultCacheCapacity
	}

	pendingStore := pending.New(cfg.Backend).WithLogger(logger)
	walLog := wal.New(cfg.Backend).WithPendingSource(pendingStore).WithLogger(logger)

	e := &Engine{
		backend:          cfg.Backend,
		wal:              walLog,
		pending:          pendingStore,
		registry:         cfg.Registry,
		cache:            cache.New(cache.Options{Capacity: cacheCap, TTL: cfg.CacheTTL}),
		log:              logger,
		clock:            clock,
		rowGroupSize:     cfg.RowGroupSize,
		compactionMinAge: cfg.CompactionMinAge,
		compactionMaxN:   cfg.CompactionMaxPending,
		nsLocks:          make(map[string]*sync.Mutex),
	}
	if cfg.Metrics != nil {
		e.metrics = newMetricsSet(cfg.Metrics)
	}
	return e
}

// RegisterSchema registers or replaces ns's field schema.
func (e *Engine) RegisterSchema(ns string, fields map[string]string) error {
	if e.registry == nil {
		e.registry = schema.NewRegistry()
	}
	return e.registry.Register(ns, fields)
}

// Dispose clears the engine's read cache. The per-namespace locks and
// the WAL's in-memory sequence counters are not cleared. It does not
// touch the storage backend; a fresh Engine over the same backend
// recovers all durable state from storage.
func (e *Engine) Dispose() {
	e.disposeOnce.Do(func() {
		e.cache.Clear()
	})
}

// nsLock returns the serializer mutex for ns, creating it on first use.
// Mutations to the same namespace serialize through this lock; mutations
// to different namespaces never block each other.
func (e *Engine) nsLock(ns string) *sync.Mutex {
	e.nsLocksMu.Lock()
	defer e.nsLocksMu.Unlock()
	m, ok := e.nsLocks[ns]
	if !ok {
		m = &sync.Mutex{}
		e.nsLocks[ns] = m
	}
	return m
}

func (e *Engine) now() time.Time { return e.clock() }

// withContext is a small helper used throughout write.go/read.go to
// short-circuit on an already-cancelled context before touching storage.
func withContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return parqueerr.Wrap(parqueerr.Cancelled, ctx.Err(), "operation cancelled")
	default:
		return nil
	}
}
