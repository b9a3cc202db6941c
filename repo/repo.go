// Package repo deduplicates execution plans across plan handles. Plans
// with equal descriptors share one execution plan, and with it the device
// twiddle buffers and compiled kernels it owns.
package repo

import (
	"fmt"
	"math"
	"sync"

	"github.com/notargets/FFTKernel/logging"
)

// ExecPlan is the device-ready form of a plan
type ExecPlan interface {
	Free()
}

// Builder realizes an execution plan on a cache miss
type Builder interface {
	Build(desc Descriptor) (ExecPlan, error)
}

// BuilderFunc adapts a function to Builder
type BuilderFunc func(desc Descriptor) (ExecPlan, error)

// Build calls f
func (f BuilderFunc) Build(desc Descriptor) (ExecPlan, error) {
	return f(desc)
}

type cacheEntry struct {
	desc     Descriptor
	plan     ExecPlan
	refCount int
}

type handleKey struct {
	plan     *Plan
	deviceID int
}

// Repository is the plan cache. One mutex serializes every operation;
// plans are created and destroyed far less often than they are executed.
type Repository struct {
	mu        sync.Mutex
	builder   Builder
	unique    map[Descriptor]*cacheEntry
	lookup    map[handleKey]*cacheEntry
	destroyed bool
}

// New creates an empty repository that builds plans with builder
func New(builder Builder) *Repository {
	if builder == nil {
		panic("repo: nil Builder")
	}
	return &Repository{
		builder: builder,
		unique:  make(map[Descriptor]*cacheEntry),
		lookup:  make(map[handleKey]*cacheEntry),
	}
}

func keyOf(p *Plan) handleKey {
	return handleKey{plan: p, deviceID: p.desc.DeviceID}
}

// CreatePlan binds p to the execution plan for its descriptor, building
// one if no structurally equal plan is live. Creating an already bound
// handle does nothing.
func (r *Repository) CreatePlan(p *Plan) error {
	if p == nil {
		return fmt.Errorf("repo: nil plan")
	}
	if scale := p.desc.Params.ScaleFactor; math.IsNaN(scale) || math.IsInf(scale, 0) {
		return fmt.Errorf("repo: scale factor %v is not finite", scale)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	log := logging.For("repo")
	if r.destroyed {
		log.Warn("CreatePlan after Close ignored")
		return nil
	}

	hk := keyOf(p)
	if _, exists := r.lookup[hk]; exists {
		return nil
	}

	if entry, hit := r.unique[p.desc]; hit {
		entry.refCount++
		r.lookup[hk] = entry
		log.Debugf("plan cache hit, refcount now %d", entry.refCount)
		return nil
	}

	plan, err := r.builder.Build(p.desc)
	if err != nil {
		return fmt.Errorf("failed to build execution plan: %w", err)
	}
	if plan == nil {
		return fmt.Errorf("builder returned no execution plan")
	}
	entry := &cacheEntry{desc: p.desc, plan: plan, refCount: 1}
	r.unique[p.desc] = entry
	r.lookup[hk] = entry
	log.Debugf("plan cache miss, %d unique plans", len(r.unique))
	return nil
}

// GetPlan returns the execution plan bound to p, or nil if p is unknown
func (r *Repository) GetPlan(p *Plan) ExecPlan {
	if p == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil
	}
	if entry, ok := r.lookup[keyOf(p)]; ok {
		return entry.plan
	}
	return nil
}

// DeletePlan unbinds p. The execution plan is freed when its last handle
// goes away. Unknown or already deleted handles are ignored.
func (r *Repository) DeletePlan(p *Plan) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}

	hk := keyOf(p)
	entry, exists := r.lookup[hk]
	if !exists {
		return
	}
	delete(r.lookup, hk)

	entry.refCount--
	if entry.refCount <= 0 {
		entry.plan.Free()
		delete(r.unique, entry.desc)
		logging.For("repo").Debugf("freed execution plan, %d unique plans", len(r.unique))
	}
}

// UniquePlanCount is the number of distinct execution plans
func (r *Repository) UniquePlanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.unique)
}

// TotalPlanCount is the number of live handles
func (r *Repository) TotalPlanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lookup)
}

// RefCount returns the number of handles sharing the plan for desc
func (r *Repository) RefCount(desc Descriptor) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.unique[desc]; ok {
		return entry.refCount
	}
	return 0
}

// Clear frees every cached plan regardless of outstanding handles
func (r *Repository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *Repository) clearLocked() {
	for _, entry := range r.unique {
		entry.plan.Free()
	}
	r.unique = make(map[Descriptor]*cacheEntry)
	r.lookup = make(map[handleKey]*cacheEntry)
}

// Close frees every plan and turns all later calls into no-ops
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.clearLocked()
	r.destroyed = true
}
