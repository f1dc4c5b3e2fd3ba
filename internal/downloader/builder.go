package downloader

import (
	"fmt"
	"net/http"
	"time"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config tunes the manager.
type Config struct {
	// DownloadDir is the root directory finished files are laid out under.
	DownloadDir string
	// MaxConcurrent caps the number of parallel downloads.
	MaxConcurrent int
	// MaxRetries caps fetch attempts per download run.
	MaxRetries uint
	// ProgressInterval is the byte interval between progress reports and
	// tracking persists.
	ProgressInterval int64
	// QueueSize is the depth of the dispatch queue.
	QueueSize int
	// FetchTimeout bounds a single fetch attempt. Zero means no timeout,
	// which large media downloads generally need.
	FetchTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 1 * 1024 * 1024 // 1MB
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	return cfg
}

// ManagerBuilder assembles a Manager from its collaborators. Storage, a
// module source, and at least one strategy are required.
type ManagerBuilder struct {
	cfg        Config
	store      Storage
	modules    ModuleSource
	strategies map[catalog.ModuleType]Strategy
	httpClient *http.Client
	tel        *telemetry.Telemetry
}

func NewManagerBuilder(cfg Config) *ManagerBuilder {
	return &ManagerBuilder{
		cfg:        cfg,
		strategies: make(map[catalog.ModuleType]Strategy),
	}
}

func (b *ManagerBuilder) WithStorage(store Storage) *ManagerBuilder {
	b.store = store

	return b
}

func (b *ManagerBuilder) WithModuleSource(modules ModuleSource) *ManagerBuilder {
	b.modules = modules

	return b
}

// WithStrategy registers the strategy handling the given module type.
func (b *ManagerBuilder) WithStrategy(t catalog.ModuleType, s Strategy) *ManagerBuilder {
	b.strategies[t] = s

	return b
}

func (b *ManagerBuilder) WithHTTPClient(client *http.Client) *ManagerBuilder {
	b.httpClient = client

	return b
}

func (b *ManagerBuilder) WithTelemetry(tel *telemetry.Telemetry) *ManagerBuilder {
	b.tel = tel

	return b
}

func (b *ManagerBuilder) Build() (*Manager, error) {
	if b.store == nil {
		return nil, fmt.Errorf("download manager requires a storage")
	}

	if b.modules == nil {
		return nil, fmt.Errorf("download manager requires a module source")
	}

	if len(b.strategies) == 0 {
		return nil, fmt.Errorf("download manager requires at least one strategy")
	}

	cfg := b.cfg.withDefaults()

	if cfg.DownloadDir == "" {
		return nil, fmt.Errorf("download manager requires a download directory")
	}

	client := b.httpClient
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.FetchTimeout,
		}
	}

	return &Manager{
		cfg:        cfg,
		store:      b.store,
		modules:    b.modules,
		strategies: b.strategies,
		fetcher:    &fetcher{client: client},
		tel:        b.tel,
		tasks:      make(map[uuid.UUID]*task),
		queue:      make(chan uuid.UUID, cfg.QueueSize),
		OnFinished: make(chan *catalog.Module, eventBuffer),
		OnFailed:   make(chan *FailedDownload, eventBuffer),
	}, nil
}
