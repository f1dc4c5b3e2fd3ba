package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/downloader/progress"
	"github.com/courseloom/course_downloader/internal/logctx"
	"github.com/courseloom/course_downloader/internal/telemetry"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	dirPerm    = 0755
	filePerm   = 0644
	partSuffix = ".part"

	eventBuffer = 16
)

type stopReason int

const (
	stopNone stopReason = iota
	stopPause
	stopCancel
)

// task is the in-memory runtime record for one tracked item.
type task struct {
	item      *catalog.Module
	state     State
	progress  float64
	localPath string
	fileSize  int64
	lastErr   string
	stop      stopReason
	cancel    context.CancelFunc
}

// FailedDownload is emitted on OnFailed when an item exhausts its retries.
type FailedDownload struct {
	Item *catalog.Module
	Err  error
}

// Manager is the download engine: it queues items, runs a bounded number of
// workers, drives the per-type strategies, and mirrors every state change
// into the tracking storage.
type Manager struct {
	cfg        Config
	store      Storage
	modules    ModuleSource
	strategies map[catalog.ModuleType]Strategy
	fetcher    *fetcher
	tel        *telemetry.Telemetry

	mu    sync.RWMutex
	tasks map[uuid.UUID]*task
	queue chan uuid.UUID

	OnFinished chan *catalog.Module
	OnFailed   chan *FailedDownload
}

func (m *Manager) Close() {
	close(m.OnFinished)
	close(m.OnFailed)
}

// Start launches the dispatcher. Workers are bounded by a semaphore the same
// size as MaxConcurrent; queued items wait for a free slot.
func (m *Manager) Start(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	logger.Info("download manager started", "max_concurrent", m.cfg.MaxConcurrent)

	go func() {
		sem := make(chan struct{}, m.cfg.MaxConcurrent)

		for {
			select {
			case <-ctx.Done():
				logger.Info("shutting down download manager")

				return
			case id := <-m.queue:
				sem <- struct{}{}

				go func(id uuid.UUID) {
					defer func() { <-sem }() // release the slot

					m.runDownload(ctx, id)
				}(id)
			}
		}
	}()
}

// Download registers the item and queues it for download. Requesting a
// completed item reports ErrAlreadyDownloaded; requesting an item that is
// already queued or in flight is a no-op.
func (m *Manager) Download(ctx context.Context, item *catalog.Module) error {
	if item == nil {
		return fmt.Errorf("nil download item")
	}

	if _, ok := m.strategies[item.Type]; !ok {
		return fmt.Errorf("%w: %s", ErrNoStrategy, item.Type)
	}

	m.mu.Lock()

	t, ok := m.tasks[item.ID]
	if !ok {
		t = &task{item: item, state: StateIdle}

		// Hydrate from storage so restarts see previous completions.
		if rec, err := m.store.LoadTracking(ctx, item.ID); err == nil && rec != nil {
			t.state = rec.State
			t.progress = rec.Progress
			t.localPath = rec.LocalPath
			t.fileSize = rec.FileSize

			if rec.State == StateCompleted {
				if _, err := os.Stat(rec.LocalPath); err != nil {
					// file vanished underneath us; allow a fresh download
					t.state = StateIdle
					t.progress = 0
					t.localPath = ""
					t.fileSize = 0
				}
			}
		}

		m.tasks[item.ID] = t
	} else {
		t.item = item
	}

	switch t.state {
	case StateCompleted:
		m.mu.Unlock()

		return ErrAlreadyDownloaded
	case StatePending, StateDownloading:
		m.mu.Unlock()

		return nil
	}

	t.state = StatePending
	t.lastErr = ""
	m.mu.Unlock()

	if err := m.persist(ctx, t, item.ID); err != nil {
		return err
	}

	return m.enqueue(ctx, item.ID)
}

// Pause stops a queued or in-flight download, keeping the partial file so a
// later resume continues from the same byte offset.
func (m *Manager) Pause(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()

	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()

		return ErrUnknownItem
	}

	if !CanTransition(t.state, StatePaused) {
		from := t.state
		m.mu.Unlock()

		return &StateError{ItemID: id, From: from, To: StatePaused}
	}

	if t.state == StateDownloading {
		t.stop = stopPause
		if t.cancel != nil {
			t.cancel()
		}

		m.mu.Unlock()

		// the worker observes the cancellation and persists the paused state
		return nil
	}

	t.state = StatePaused
	m.mu.Unlock()

	return m.persist(ctx, t, id)
}

// Resume re-queues a paused or failed download.
func (m *Manager) Resume(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()

	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()

		return ErrUnknownItem
	}

	if t.state != StatePaused && t.state != StateFailed {
		from := t.state
		m.mu.Unlock()

		return &StateError{ItemID: id, From: from, To: StatePending}
	}

	t.state = StatePending
	t.lastErr = ""
	m.mu.Unlock()

	if err := m.persist(ctx, t, id); err != nil {
		return err
	}

	return m.enqueue(ctx, id)
}

// Cancel aborts a queued, in-flight, or paused download and discards its
// partial file.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()

	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()

		return ErrUnknownItem
	}

	if !CanTransition(t.state, StateCancelled) {
		from := t.state
		m.mu.Unlock()

		return &StateError{ItemID: id, From: from, To: StateCancelled}
	}

	if t.state == StateDownloading {
		t.stop = stopCancel
		if t.cancel != nil {
			t.cancel()
		}

		m.mu.Unlock()

		return nil
	}

	t.state = StateCancelled
	t.progress = 0
	item := t.item
	m.mu.Unlock()

	m.removePartial(item)

	return m.persist(ctx, t, id)
}

// Delete resets an item to idle from any state and removes its files.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()

	var item *catalog.Module

	var local string

	if t, ok := m.tasks[id]; ok {
		if t.state == StateDownloading {
			t.stop = stopCancel
			if t.cancel != nil {
				t.cancel()
			}
		}

		item = t.item
		local = t.localPath

		t.state = StateIdle
		t.progress = 0
		t.localPath = ""
		t.fileSize = 0
		t.lastErr = ""
	}

	m.mu.Unlock()

	if local == "" {
		if rec, err := m.store.LoadTracking(ctx, id); err == nil && rec != nil {
			local = rec.LocalPath
		}
	}

	if local != "" {
		if err := os.RemoveAll(local); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove downloaded file: %w", err)
		}
	}

	if item != nil {
		m.removePartial(item)
	}

	rec := &TrackingRecord{ItemID: id, State: StateIdle, UpdatedAt: time.Now()}
	if err := m.store.SaveTracking(ctx, rec); err != nil {
		return &StorageError{Op: "save_tracking", Err: err}
	}

	return nil
}

// Clear cancels everything in flight, removes all downloaded and partial
// files, and resets the tracking store.
func (m *Manager) Clear(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	m.mu.Lock()

	for _, t := range m.tasks {
		if t.state == StateDownloading {
			t.stop = stopCancel
			if t.cancel != nil {
				t.cancel()
			}
		}

		// workers skip their final persist once the state left downloading
		t.state = StateIdle
	}

	m.tasks = make(map[uuid.UUID]*task)
	m.mu.Unlock()

	recs, err := m.store.ListTracking(ctx)
	if err != nil {
		return &StorageError{Op: "list_tracking", Err: err}
	}

	for _, rec := range recs {
		if rec.LocalPath == "" {
			continue
		}

		if err := os.RemoveAll(rec.LocalPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove downloaded file", "path", rec.LocalPath, "err", err)
		}
	}

	if err := m.removeAllPartials(); err != nil {
		logger.Warn("failed to remove partial files", "err", err)
	}

	if err := m.store.ResetAllTracking(ctx); err != nil {
		return &StorageError{Op: "reset_all_tracking", Err: err}
	}

	return nil
}

// Recover rebuilds the queue from storage on startup: rows stuck in
// downloading are demoted to pending and re-queued together with pending rows.
func (m *Manager) Recover(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	recs, err := m.store.ListTracking(ctx, StateDownloading, StatePending)
	if err != nil {
		return &StorageError{Op: "list_tracking", Err: err}
	}

	for _, rec := range recs {
		item, err := m.modules.ModuleByID(ctx, rec.ItemID)
		if err != nil {
			logger.Warn("skipping recovery of unknown item", "item_id", rec.ItemID, "err", err)

			continue
		}

		m.mu.Lock()
		t := &task{item: item, state: StatePending, progress: rec.Progress}
		m.tasks[rec.ItemID] = t
		m.mu.Unlock()

		if err := m.persist(ctx, t, rec.ItemID); err != nil {
			return err
		}

		if err := m.enqueue(ctx, rec.ItemID); err != nil {
			return err
		}

		logger.Info("recovered pending download", "item_id", rec.ItemID, "title", item.Title)
	}

	return nil
}

// States returns a snapshot of every tracked item's state.
func (m *Manager) States() map[uuid.UUID]State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[uuid.UUID]State, len(m.tasks))
	for id, t := range m.tasks {
		states[id] = t.state
	}

	return states
}

// Progress returns a snapshot of every tracked item's progress fraction.
func (m *Manager) Progress() map[uuid.UUID]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prog := make(map[uuid.UUID]float64, len(m.tasks))
	for id, t := range m.tasks {
		prog[id] = t.progress
	}

	return prog
}

// ActiveCount returns the number of queued plus in-flight downloads.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0

	for _, t := range m.tasks {
		if t.state.Active() {
			count++
		}
	}

	return count
}

// LastError returns the last failure message recorded for an item, or empty.
func (m *Manager) LastError(id uuid.UUID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if t, ok := m.tasks[id]; ok {
		return t.lastErr
	}

	return ""
}

func (m *Manager) enqueue(ctx context.Context, id uuid.UUID) error {
	select {
	case m.queue <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) runDownload(ctx context.Context, id uuid.UUID) {
	m.mu.Lock()

	t, ok := m.tasks[id]
	if !ok || t.state != StatePending {
		// paused, cancelled, or cleared while waiting in the queue
		m.mu.Unlock()

		return
	}

	item := t.item
	t.state = StateDownloading
	t.stop = stopNone

	taskCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	m.mu.Unlock()

	defer cancel()

	_ = m.persist(ctx, t, id)

	err := m.tel.InstrumentDownload(taskCtx, id.String(), item.Title, func(ctx context.Context) error {
		return m.download(ctx, t, item)
	})

	m.finish(ctx, t, item, err)
}

func (m *Manager) download(ctx context.Context, t *task, item *catalog.Module) error {
	strategy := m.strategies[item.Type]
	target := m.targetPath(item)
	partPath := target + partSuffix

	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := m.attempt(ctx, t, item, strategy, partPath); err != nil {
			var fetchErr *FetchError
			if errors.As(err, &fetchErr) && !fetchErr.Retryable() {
				return struct{}{}, backoff.Permanent(err)
			}

			return struct{}{}, err
		}

		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(m.cfg.MaxRetries))
	if err != nil {
		return err
	}

	if err := os.Rename(partPath, target); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	final, err := strategy.Process(ctx, target, item)
	if err != nil {
		return fmt.Errorf("failed to post-process file: %w", err)
	}

	if err := strategy.Validate(ctx, final, item); err != nil {
		// an invalid file is worthless; remove it so a retry starts clean
		if rmErr := os.RemoveAll(final); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("failed to remove invalid file: %w", rmErr)
		}

		return err
	}

	var size int64
	if info, err := os.Stat(final); err == nil {
		size = info.Size()
	}

	m.mu.Lock()
	t.progress = 1
	t.localPath = final
	t.fileSize = size
	m.mu.Unlock()

	return nil
}

func (m *Manager) attempt(ctx context.Context, t *task, item *catalog.Module, strategy Strategy, partPath string) error {
	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	req, err := strategy.Prepare(ctx, item, offset)
	if err != nil {
		return fmt.Errorf("failed to prepare download: %w", err)
	}

	if !req.AllowResume && offset > 0 {
		if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to discard partial file: %w", err)
		}

		offset = 0
	}

	res, err := m.fetcher.Fetch(ctx, req, offset)
	if err != nil {
		return err
	}

	defer res.body.Close()

	flags := os.O_WRONLY | os.O_CREATE
	if res.resumed {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		offset = 0
	}

	out, err := os.OpenFile(partPath, flags, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open partial file: %w", err)
	}

	defer out.Close()

	return m.writeFile(ctx, t, item, out, res, offset)
}

func (m *Manager) writeFile(ctx context.Context, t *task, item *catalog.Module, out io.Writer, res *fetchResult, offset int64) error {
	logger := logctx.LoggerFromContext(ctx).With("item_id", item.ID)

	logger.Info("downloading file", "title", item.Title, "file_size", humanize.Bytes(uint64(max(res.total, 0))))

	progressCb := func(written int64, total int64) {
		downloaded := offset + written

		fraction := 0.0
		if res.total > 0 {
			fraction = float64(downloaded) / float64(res.total)
		}

		m.mu.Lock()
		t.progress = fraction
		m.mu.Unlock()

		// throttled by the reader's report interval
		if err := m.persist(ctx, t, item.ID); err != nil {
			logger.Debug("failed to persist progress", "err", err)
		}

		logger.Debug("download progress",
			"downloaded", humanize.Bytes(uint64(downloaded)),
			"total", humanize.Bytes(uint64(max(res.total, 0))),
			"percent", humanize.FtoaWithDigits(fraction*100, 2))
	}

	pr := progress.NewReader(res.body, res.total, m.cfg.ProgressInterval, progressCb)

	if _, err := io.Copy(out, pr); err != nil {
		return &FetchError{URL: item.DownloadURL, Err: err}
	}

	return nil
}

func (m *Manager) finish(ctx context.Context, t *task, item *catalog.Module, err error) {
	logger := logctx.LoggerFromContext(ctx)

	// The parent context may already be cancelled; the final state still has
	// to reach storage.
	persistCtx := context.WithoutCancel(ctx)

	m.mu.Lock()

	if t.state != StateDownloading {
		// deleted or cleared while running; nothing left to record, but the
		// worker may have recreated the partial file after the caller removed
		// it, so the cleanup happens here where no writes can follow
		stop := t.stop
		t.cancel = nil
		m.mu.Unlock()

		if stop == stopCancel {
			m.removePartial(item)
		}

		return
	}

	stop := t.stop
	t.cancel = nil

	switch {
	case err == nil:
		t.state = StateCompleted
	case stop == stopPause:
		t.state = StatePaused
	case stop == stopCancel:
		t.state = StateCancelled
		t.progress = 0
	case ctx.Err() != nil:
		// shutdown mid-flight; leave it pending so recovery re-queues it
		t.state = StatePending
	default:
		t.state = StateFailed
		t.lastErr = err.Error()
	}

	state := t.state
	m.mu.Unlock()

	if state == StateCancelled {
		m.removePartial(item)
	}

	if perr := m.persist(persistCtx, t, item.ID); perr != nil {
		logger.Error("failed to persist download state", "item_id", item.ID, "err", perr)
	}

	switch state {
	case StateCompleted:
		logger.Info("download completed", "item_id", item.ID, "title", item.Title, "target", t.localPath)

		m.OnFinished <- item
	case StateFailed:
		logger.Error("download failed", "item_id", item.ID, "title", item.Title, "err", err)

		m.OnFailed <- &FailedDownload{Item: item, Err: err}
	case StatePaused:
		logger.Info("download paused", "item_id", item.ID, "title", item.Title)
	case StateCancelled:
		logger.Info("download cancelled", "item_id", item.ID, "title", item.Title)
	}
}

func (m *Manager) persist(ctx context.Context, t *task, id uuid.UUID) error {
	m.mu.RLock()
	rec := &TrackingRecord{
		ItemID:    id,
		State:     t.state,
		Progress:  t.progress,
		LocalPath: t.localPath,
		FileSize:  t.fileSize,
		UpdatedAt: time.Now(),
	}
	m.mu.RUnlock()

	if err := m.store.SaveTracking(ctx, rec); err != nil {
		return &StorageError{Op: "save_tracking", Err: err}
	}

	return nil
}

// targetPath lays files out as <download_dir>/<course-slug>/<module-slug><ext>.
func (m *Manager) targetPath(item *catalog.Module) string {
	courseDir := slug.Make(item.CourseTitle)
	if courseDir == "" {
		courseDir = "online-modules"
	}

	name := slug.Make(item.Title)
	if name == "" {
		name = item.ID.String()
	}

	return filepath.Join(m.cfg.DownloadDir, courseDir, name+item.Type.Ext())
}

func (m *Manager) removePartial(item *catalog.Module) {
	_ = os.Remove(m.targetPath(item) + partSuffix)
}

func (m *Manager) removeAllPartials() error {
	return filepath.WalkDir(m.cfg.DownloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if !d.IsDir() && strings.HasSuffix(path, partSuffix) {
			return os.Remove(path)
		}

		return nil
	})
}
