// Package builder converts a set of root items and everything they depend on into templates. Each item is fetched
// and converted at most once, even when it is referenced from several places or the references form a cycle.
package builder

import (
	"context"
	"fmt"
	"sync"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/handler/group"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/template"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Fetcher retrieves the descriptions of items and groups.
type Fetcher interface {
	GetItem(ctx context.Context, id string) (*portal.Item, error)
	GetGroup(ctx context.Context, id string) (*portal.Group, error)
}

// Builder builds templates for items and their dependencies.
type Builder interface {
	// Build converts the root items and, recursively, their dependencies into templates, adding them to the
	// collection. Items already present in the collection are not processed again. Items that cannot be fetched or
	// have no handler are left out with a warning. A conversion error aborts the build. The resolved templates are
	// returned in the order they were first reserved.
	Build(ctx context.Context, rootIDs []string, collection *template.Collection) ([]*template.Template, error)
}

// New creates a builder. maxConcurrentFetches limits how many items are fetched and converted at the same time.
func New(
	logger log.Logger,
	fetcher Fetcher,
	handlers handler.Registry,
	maxConcurrentFetches int64,
) (Builder, error) {
	if logger == nil {
		return nil, fmt.Errorf("bug: no logger passed to builder.New")
	}
	if fetcher == nil || handlers == nil {
		return nil, fmt.Errorf("bug: no fetcher or handler registry passed to builder.New")
	}
	if maxConcurrentFetches < 1 {
		return nil, fmt.Errorf("invalid maximum of concurrent fetches: %d", maxConcurrentFetches)
	}
	return &templateBuilder{
		logger:               logger.WithLabel("source", "builder"),
		fetcher:              fetcher,
		handlers:             handlers,
		maxConcurrentFetches: maxConcurrentFetches,
	}, nil
}

type templateBuilder struct {
	logger               log.Logger
	fetcher              Fetcher
	handlers             handler.Registry
	maxConcurrentFetches int64
}

func (b *templateBuilder) Build(
	ctx context.Context,
	rootIDs []string,
	collection *template.Collection,
) ([]*template.Template, error) {
	if collection == nil {
		return nil, fmt.Errorf("bug: no collection passed to Build")
	}
	r := &run{
		logger:     b.logger,
		fetcher:    b.fetcher,
		handlers:   b.handlers,
		collection: collection,
		semaphore:  semaphore.NewWeighted(b.maxConcurrentFetches),
		lock:       &sync.Mutex{},
		entries:    map[string]*entry{},
	}
	b.logger.Infof("Building templates for %d items...", len(rootIDs))
	if err := r.processAll(ctx, rootIDs); err != nil {
		return nil, err
	}
	resolved := collection.Resolved()
	b.logger.Infof(
		"Built %d templates (%d items left out).",
		len(resolved),
		r.count(stateFailed),
	)
	return resolved, nil
}

type state string

const (
	statePending state = "pending"
	stateDone    state = "done"
	stateFailed  state = "failed"
)

type entry struct {
	index int
	state state
}

// run holds the state of a single Build call.
type run struct {
	logger     log.Logger
	fetcher    Fetcher
	handlers   handler.Registry
	collection *template.Collection
	semaphore  *semaphore.Weighted
	lock       *sync.Mutex
	entries    map[string]*entry
}

// processAll reserves every ID that has not been seen yet and processes the reserved ones concurrently. The
// reservation happens before the goroutine starts, so two branches can never both claim the same ID.
func (r *run) processAll(ctx context.Context, ids []string) error {
	g, groupCtx := errgroup.WithContext(ctx)
	for _, id := range ids {
		e, reserved := r.reserve(id)
		if !reserved {
			continue
		}
		baseID := template.BaseID(id)
		g.Go(func() error {
			return r.process(groupCtx, baseID, e)
		})
	}
	return g.Wait()
}

func (r *run) reserve(id string) (*entry, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	baseID := template.BaseID(id)
	if baseID == "" {
		return nil, false
	}
	if _, ok := r.entries[baseID]; ok {
		return nil, false
	}
	index, reserved := r.collection.Reserve(baseID)
	if !reserved {
		// Already present in the collection the caller passed in.
		return nil, false
	}
	e := &entry{
		index: index,
		state: statePending,
	}
	r.entries[baseID] = e
	return e, true
}

func (r *run) process(ctx context.Context, id string, e *entry) error {
	tmpl, err := r.convert(ctx, id)
	if err != nil {
		return err
	}
	if tmpl == nil {
		r.setState(e, stateFailed)
		return nil
	}
	if err := r.collection.Replace(e.index, tmpl); err != nil {
		return err
	}
	r.setState(e, stateDone)
	return r.processAll(ctx, tmpl.Dependencies)
}

// convert fetches and converts one item while holding a slot of the semaphore. A nil template without an error means
// the item is left out.
func (r *run) convert(ctx context.Context, id string) (*template.Template, error) {
	if err := r.semaphore.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.semaphore.Release(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	item, err := r.fetch(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warningf("Failed to fetch item %s, leaving it out (%v)", id, err)
		return nil, nil
	}
	hnd, err := r.handlers.GetByType(item.Type)
	if err != nil {
		r.logger.Warningf("Item %s is of the unsupported type %s, leaving it out.", id, item.Type)
		return nil, nil
	}
	r.logger.Debugf("Converting %s item %s...", item.Type, id)
	tmpl, err := hnd.ConvertItemToTemplate(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s item %s (%w)", item.Type, id, err)
	}
	if tmpl == nil || tmpl.IsPlaceholder() {
		return nil, fmt.Errorf("bug: the handler for %s returned no template for item %s", item.Type, id)
	}
	return tmpl, nil
}

// fetch retrieves the item. Groups are not items, so an ID that is not found is looked up as a group.
func (r *run) fetch(ctx context.Context, id string) (*portal.Item, error) {
	item, err := r.fetcher.GetItem(ctx, id)
	if err == nil {
		return item, nil
	}
	if !portal.IsNotFound(err) {
		return nil, err
	}
	g, groupErr := r.fetcher.GetGroup(ctx, id)
	if groupErr != nil {
		return nil, fmt.Errorf("%w, and no group found either (%v)", err, groupErr)
	}
	return group.FromGroup(g), nil
}

func (r *run) setState(e *entry, s state) {
	r.lock.Lock()
	defer r.lock.Unlock()
	e.state = s
}

func (r *run) count(s state) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	result := 0
	for _, e := range r.entries {
		if e.state == s {
			result++
		}
	}
	return result
}
