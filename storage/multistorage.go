package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/music-copyright-registry/interfaces"
)

// MultiStorageBackend implements interfaces.StorageBackend using multiple backends with fallback
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch tries each available backend in order.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", id.String()))
			continue
		}

		data, err := backend.Fetch(ctx, id)
		if err == nil {
			m.log.Info("Successfully fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", id.String()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("cid", id.String()),
			"err", err)
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}
	if notFound == len(errs) {
		return nil, interfaces.ErrContentNotFound
	}

	m.log.Error("All backends failed to fetch content",
		slog.String("cid", id.String()),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all backends failed to fetch %s: %w", id, errors.Join(errs...))
}

// Upload stores data in the first available backend, which assigns the
// identifier, then copies it to the remaining backends. Mirror failures are
// logged and do not fail the upload.
func (m *MultiStorageBackend) Upload(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	start := time.Now()
	var (
		result  interfaces.ContentID
		primary string
		errs    []error
	)

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if result == "" {
			id, err := backend.Upload(ctx, data)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
				m.log.Debug("Failed to store to backend",
					slog.String("backend_name", backend.Name()),
					"err", err)
				continue
			}
			result, primary = id, backend.Name()
			m.log.Info("Successfully stored content",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", id.String()),
				slog.Duration("duration", time.Since(start)))
			continue
		}

		if err := m.mirror(ctx, backend, result, data); err != nil {
			m.log.Warn("Failed to mirror content",
				slog.String("backend_name", backend.Name()),
				slog.String("primary", primary),
				slog.String("cid", result.String()),
				"err", err)
		}
	}

	if result == "" {
		m.log.Error("All backends failed to store data",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return "", interfaces.ErrBackendUnavailable
		}
		return "", fmt.Errorf("all backends failed to store data: %w", errors.Join(errs...))
	}

	return result, nil
}

func (m *MultiStorageBackend) mirror(ctx context.Context, backend interfaces.StorageBackend, id interfaces.ContentID, data []byte) error {
	if mirror, ok := backend.(interfaces.ContentMirror); ok {
		return mirror.Put(ctx, id, data)
	}

	got, err := backend.Upload(ctx, data)
	if err != nil {
		return err
	}
	if got != id {
		return fmt.Errorf("inconsistent content id: expected %s, got %s", id, got)
	}
	return nil
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the combined URIs of all backends.
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
