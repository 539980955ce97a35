package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nbcore/notebookcore/internal/application/observer"
	"github.com/nbcore/notebookcore/internal/coreerr"
	"github.com/nbcore/notebookcore/internal/domain"
	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
	"github.com/nbcore/notebookcore/internal/kernelproc"
)

// Registry is the in-memory map of live Coordinators, one per notebook
// that has been loaded; a Coordinator stays in the map until Shutdown or
// ShutdownAll removes it. This is the "Coordinator-per-notebook" design
// note from : the Registry never shares a Kernel across notebooks.
type Registry struct {
	mu           sync.Mutex
	coordinators map[string]*Coordinator

	notebookRepo repository.NotebookRepository
	cellRepo repository.CellRepository
	kernelBinPath string
	log *logger.Logger
	obs *observer.ObserverManager
}

// NewRegistry constructs a Registry backed by the given persistence
// collaborators. kernelBinPath is the path to the built cmd/kernel
// binary spawned for each live notebook. obs may be nil, in which case
// Coordinators fan events out to subscribers only, with no audit sinks.
func NewRegistry(notebookRepo repository.NotebookRepository, cellRepo repository.CellRepository, kernelBinPath string, log *logger.Logger, obs *observer.ObserverManager) *Registry {
	return &Registry{
		coordinators: make(map[string]*Coordinator),
		notebookRepo: notebookRepo,
		cellRepo: cellRepo,
		kernelBinPath: kernelBinPath,
		log: log,
		obs: obs,
	}
}

// Get returns the already-live Coordinator for notebookID, if any.
func (r *Registry) Get(notebookID string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coordinators[notebookID]
	return c, ok
}

// GetOrLoad returns the live Coordinator for notebookID, spawning a
// fresh Kernel process and loading the notebook from storage on first
// access. Ownership is checked against userID; callers still need to
// re-check ownership on every subsequent operation since Coordinators
// outlive any single caller.
func (r *Registry) GetOrLoad(ctx context.Context, userID, notebookID string) (*Coordinator, error) {
	r.mu.Lock()
	if c, ok := r.coordinators[notebookID]; ok {
		r.mu.Unlock()
		if dead, _ := c.IsDead(); dead {
			return nil, coreerr.ErrKernelDied
		}
		return c, nil
	}
	r.mu.Unlock()

	meta, err := r.notebookRepo.LoadMetadata(ctx, userID, notebookID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, coreerr.ErrNotFound
	}
	if meta.UserID != userID {
		return nil, coreerr.ErrForbidden
	}

	cells, err := r.cellRepo.LoadCells(ctx, notebookID)
	if err != nil {
		return nil, err
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Position < cells[j].Position })

	nb := &domain.Notebook{
		ID: meta.ID, UserID: meta.UserID, Name: meta.Name, DBConnStr: meta.DBConnStr,
		Revision: meta.Revision, Cells: cells,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.coordinators[notebookID]; ok {
		return c, nil
	}

	proc, err := kernelproc.Spawn(r.kernelBinPath)
	if err != nil {
		return nil, fmt.Errorf("spawning kernel process: %w", err)
	}

	c := New(nb, proc, r.notebookRepo, r.cellRepo, r.log, r.obs)
	r.coordinators[notebookID] = c
	return c, nil
}

// CreateEmpty persists a brand-new, empty notebook's metadata. The
// Coordinator itself is spawned lazily on first GetOrLoad, matching
// "loaded on demand" lifecycle.
func (r *Registry) CreateEmpty(ctx context.Context, userID, notebookID, name string) error {
	return r.notebookRepo.SaveMetadata(ctx, repository.NotebookMetadata{
		ID: notebookID, UserID: userID, Name: name, Revision: 0, CellCount: 0,
	})
}

// List returns every notebook owned by userID.
func (r *Registry) List(ctx context.Context, userID string) ([]repository.NotebookMetadata, error) {
	return r.notebookRepo.ListNotebooks(ctx, userID)
}

// Shutdown tears down the live Coordinator for notebookID, if any.
func (r *Registry) Shutdown(notebookID string) {
	r.mu.Lock()
	c, ok := r.coordinators[notebookID]
	if ok {
		delete(r.coordinators, notebookID)
	}
	r.mu.Unlock()
	if ok {
		c.Shutdown()
	}
}

// ShutdownAll tears down every live Coordinator.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	all := make([]*Coordinator, 0, len(r.coordinators))
	for id, c := range r.coordinators {
		all = append(all, c)
		delete(r.coordinators, id)
	}
	r.mu.Unlock()
	for _, c := range all {
		c.Shutdown()
	}
}
