package results

import (
	"context"
	"fmt"
	"io"

	"gareport/internal/config"
	"gareport/internal/report"
)

// Store persists report results. *cache.CacheClient implements it
type Store interface {
	SaveResult(ctx context.Context, name, provider, source string, res *report.Result) (*config.SavedResult, error)
	ListResults(ctx context.Context) ([]config.SavedResult, error)
	LoadResult(ctx context.Context, ref string) (*config.SavedResult, *report.Result, error)
	DeleteResult(ctx context.Context, ref string) error
}

// Manager handles result storage, retrieval, and export
type Manager struct {
	store Store
}

// NewManager creates a new results manager
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Save stores a result so it can be shown or exported later
func (m *Manager) Save(ctx context.Context, name, provider, source string, res *report.Result) (*config.SavedResult, error) {
	if res == nil {
		return nil, fmt.Errorf("no result to save")
	}
	return m.store.SaveResult(ctx, name, provider, source, res)
}

// ListResults returns saved results, optionally limited to one source
func (m *Manager) ListResults(ctx context.Context, source string, limit int) ([]config.SavedResult, error) {
	all, err := m.store.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	var out []config.SavedResult
	for _, r := range all {
		if source != "" && r.Source != source {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetResult retrieves a saved result by ID, ID prefix or name
func (m *Manager) GetResult(ctx context.Context, ref string) (*config.SavedResult, *report.Result, error) {
	meta, res, err := m.store.LoadResult(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get result: %w", err)
	}
	return meta, res, nil
}

// Show renders a saved result as a console table
func (m *Manager) Show(ctx context.Context, w io.Writer, ref string, opts TableDisplayOptions) error {
	_, res, err := m.GetResult(ctx, ref)
	if err != nil {
		return err
	}
	return RenderTable(w, res, opts)
}

// Export writes a saved result to a sink
func (m *Manager) Export(ctx context.Context, ref string, sink Sink) error {
	_, res, err := m.GetResult(ctx, ref)
	if err != nil {
		return err
	}
	return sink.Write(ctx, res)
}

// Delete removes a saved result
func (m *Manager) Delete(ctx context.Context, ref string) error {
	return m.store.DeleteResult(ctx, ref)
}
