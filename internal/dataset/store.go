// Package dataset implements the category store: one directory per category
// under a root, with every snapshot change published to subscribers.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/starford/mldataset/internal/apperr"
	"github.com/starford/mldataset/internal/events"
	"github.com/starford/mldataset/internal/models"
	"github.com/starford/mldataset/internal/storage"
)

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store owns the in-memory category list and reconciles it with the root
// directory at well-defined points only: Open, the mutating operations and
// Reload.
//
// A single mutex serializes every operation. Snapshots are handed to the
// broker while the lock is held, so subscribers see them in the order the
// mutations completed.
type Store struct {
	fs     storage.Provider
	logger *slog.Logger
	broker *events.Broker

	mu         sync.Mutex
	categories []models.Category
	loaded     bool
	scanErr    error

	// unlisted holds directories AddItem created that the snapshot does not
	// carry. Reload leaves them out until CreateCategory claims them.
	unlisted map[string]struct{}
}

// Open creates a store over provider and performs the initial scan.
//
// A failed scan leaves the store permanently unloaded: Err reports the cause
// and mutating operations fail with apperr.ErrUnavailable. Construct a new
// store to retry.
func Open(provider storage.Provider, opts ...Option) *Store {
	s := &Store{
		fs:     provider,
		logger: slog.Default(),
		broker:   events.NewBroker(),
		unlisted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	cats, err := s.Scan()
	if err != nil {
		s.scanErr = err
		s.logger.Error("dataset: initial scan failed",
			slog.String("root", provider.Root()),
			slog.String("error", err.Error()))
		return s
	}

	s.mu.Lock()
	s.categories = cats
	s.loaded = true
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info("dataset: loaded",
		slog.String("root", provider.Root()),
		slog.Int("categories", len(cats)))
	return s
}

// Close stops event delivery and closes every subscriber channel.
func (s *Store) Close() {
	s.broker.Close()
}

// Err returns the initial scan error, if any.
func (s *Store) Err() error {
	return s.scanErr
}

// Subscribe returns a channel receiving the full snapshot after every change
// made from now on. There is no replay of earlier snapshots.
func (s *Store) Subscribe() <-chan models.Snapshot {
	return s.broker.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Store) Unsubscribe(ch <-chan models.Snapshot) {
	s.broker.Unsubscribe(ch)
}

// EventsHandler streams snapshots as Server-Sent Events.
func (s *Store) EventsHandler() http.Handler {
	return s.broker
}

// Current returns a copy of the latest snapshot. loaded is false until the
// initial scan succeeded.
func (s *Store) Current() (models.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return models.Snapshot{}, false
	}
	snap := models.Snapshot{Loaded: true, Categories: s.categories}
	return snap.Clone(), true
}

// Scan lists the root's direct subdirectories as categories with empty item
// lists. It reads the disk only and leaves the snapshot alone.
func (s *Store) Scan() ([]models.Category, error) {
	dirs, err := s.fs.Dirs()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrScanFailed, err)
	}
	cats := make([]models.Category, 0, len(dirs))
	for _, d := range dirs {
		cats = append(cats, models.NewCategory(d))
	}
	return cats, nil
}

// CreateCategory creates the category directory. An existing directory is a
// successful no-op.
func (s *Store) CreateCategory(name string) error {
	_, err := s.EnsureCategory(name)
	return err
}

// EnsureCategory is CreateCategory reporting whether the directory was
// created on disk. A snapshot is published only when the category was not
// listed yet: a directory recreated under an existing record emits nothing,
// while one already on disk but unlisted is added and published.
func (s *Store) EnsureCategory(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, fmt.Errorf("%w: %w", apperr.ErrStorageWriteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false, fmt.Errorf("%w: %w", apperr.ErrStorageWriteFailed, apperr.ErrUnavailable)
	}

	created, err := s.fs.Mkdir(name)
	if err != nil {
		s.logger.Warn("dataset: create category failed",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return false, fmt.Errorf("%w: create %q: %w", apperr.ErrStorageWriteFailed, name, err)
	}

	delete(s.unlisted, name)
	if s.indexLocked(name) >= 0 {
		s.logger.Debug("dataset: category exists", slog.String("name", name))
		return created, nil
	}

	s.categories = append(s.categories, models.NewCategory(name))
	s.publishLocked()
	s.logger.Info("dataset: category created", slog.String("name", name))
	return created, nil
}

// DeleteCategory removes the category directory and everything in it.
func (s *Store) DeleteCategory(name string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStorageDeleteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return fmt.Errorf("%w: %w", apperr.ErrStorageDeleteFailed, apperr.ErrUnavailable)
	}

	if err := s.fs.RemoveDir(name); err != nil {
		s.logger.Warn("dataset: delete category failed",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: delete %q: %w", apperr.ErrStorageDeleteFailed, name, err)
	}

	delete(s.unlisted, name)
	if i := s.indexLocked(name); i >= 0 {
		s.categories = append(s.categories[:i:i], s.categories[i+1:]...)
	}
	s.publishLocked()
	s.logger.Info("dataset: category deleted", slog.String("name", name))
	return nil
}

// AddItem writes item into the category directory, creating the directory
// when missing. A file with the same name is replaced.
//
// The snapshot is not updated and nothing is published: item lists are never
// tracked in memory, and a directory created here stays unlisted (Reload
// skips it) until CreateCategory names it.
func (s *Store) AddItem(item models.FileItem, category string) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", apperr.ErrStorageWriteFailed)
	}
	if err := ValidateName(category); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStorageWriteFailed, err)
	}
	name := item.Name()
	if err := ValidateItemName(name); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStorageWriteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return fmt.Errorf("%w: %w", apperr.ErrStorageWriteFailed, apperr.ErrUnavailable)
	}

	created, err := s.fs.Mkdir(category)
	if err != nil {
		s.logger.Warn("dataset: ensure category failed",
			slog.String("name", category),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: category %q: %w", apperr.ErrStorageWriteFailed, category, err)
	}
	if created && s.indexLocked(category) < 0 {
		s.unlisted[category] = struct{}{}
	}
	if err := s.fs.Write(filepath.Join(category, name), item.Data()); err != nil {
		s.logger.Warn("dataset: write item failed",
			slog.String("category", category),
			slog.String("item", name),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: item %q: %w", apperr.ErrStorageWriteFailed, name, err)
	}

	s.logger.Debug("dataset: item stored",
		slog.String("category", category),
		slog.String("item", name),
		slog.Int("bytes", len(item.Data())))
	return nil
}

// Items lists the files stored in category, read straight from disk.
// Only the directory listing holds the lock; checksums are computed after it
// is released.
func (s *Store) Items(category string) ([]models.ItemMetadata, error) {
	if err := ValidateName(category); err != nil {
		return nil, err
	}

	s.mu.Lock()
	items, err := s.fs.Files(category)
	s.mu.Unlock()
	if err != nil {
		return nil, notFound(err)
	}

	out := items[:0]
	for _, it := range items {
		sum, err := s.fs.Checksum(filepath.Join(category, it.Name))
		if errors.Is(err, fs.ErrNotExist) {
			// Removed since the listing.
			continue
		}
		if err != nil {
			return nil, err
		}
		it.Checksum = sum
		out = append(out, it)
	}
	return out, nil
}

// ReadItem returns the bytes of one stored item.
func (s *Store) ReadItem(category, name string) ([]byte, error) {
	if err := ValidateName(category); err != nil {
		return nil, err
	}
	if err := ValidateItemName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.fs.Read(filepath.Join(category, name))
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

// Reload rescans the root and publishes a snapshot if the set of categories
// changed. Surviving categories keep their position; new ones are appended
// in scan order.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return apperr.ErrUnavailable
	}

	scanned, err := s.Scan()
	if err != nil {
		s.logger.Warn("dataset: reload failed", slog.String("error", err.Error()))
		return err
	}
	scanned = s.dropUnlistedLocked(scanned)

	merged, changed := mergeCategories(s.categories, scanned)
	if !changed {
		return nil
	}
	s.categories = merged
	s.publishLocked()
	s.logger.Info("dataset: reloaded", slog.Int("categories", len(merged)))
	return nil
}

func (s *Store) indexLocked(name string) int {
	for i, c := range s.categories {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// dropUnlistedLocked removes unlisted directories from a scan and forgets
// those no longer on disk.
func (s *Store) dropUnlistedLocked(scanned []models.Category) []models.Category {
	if len(s.unlisted) == 0 {
		return scanned
	}
	seen := make(map[string]struct{}, len(s.unlisted))
	out := scanned[:0]
	for _, c := range scanned {
		if _, ok := s.unlisted[c.Name]; ok {
			seen[c.Name] = struct{}{}
			continue
		}
		out = append(out, c)
	}
	for name := range s.unlisted {
		if _, ok := seen[name]; !ok {
			delete(s.unlisted, name)
		}
	}
	return out
}

func (s *Store) publishLocked() {
	s.broker.Publish(models.Snapshot{Loaded: true, Categories: s.categories})
}

func mergeCategories(current, scanned []models.Category) ([]models.Category, bool) {
	onDisk := make(map[string]struct{}, len(scanned))
	for _, c := range scanned {
		onDisk[c.Name] = struct{}{}
	}

	changed := false
	kept := make(map[string]struct{}, len(current))
	out := make([]models.Category, 0, len(scanned))
	for _, c := range current {
		if _, ok := onDisk[c.Name]; ok {
			out = append(out, c)
			kept[c.Name] = struct{}{}
		} else {
			changed = true
		}
	}
	for _, c := range scanned {
		if _, ok := kept[c.Name]; !ok {
			out = append(out, c)
			changed = true
		}
	}
	return out, changed
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}
	return err
}
