package charts

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnknownChart is returned for chart ids that are not known or not live.
var ErrUnknownChart = errors.New("unknown chart")

// Instance is a live chart. Generation increases every time the chart with
// the same id is recreated, so the page can tell a fresh instance from an
// update.
type Instance struct {
	ID         string    `json:"id"`
	Generation int       `json:"generation"`
	Config     Config    `json:"config"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Registry owns the chart instances of one session. Creating a chart whose
// id is already live destroys the old instance first.
type Registry struct {
	mu          sync.Mutex
	live        map[string]*Instance
	generations map[string]int
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		live:        make(map[string]*Instance),
		generations: make(map[string]int),
		now:         time.Now,
	}
}

// Create destroys any live instance with the same id and registers a new one.
func (r *Registry) Create(id string, cfg Config) Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.live, id)
	r.generations[id]++
	now := r.now()
	inst := &Instance{
		ID:         id,
		Generation: r.generations[id],
		Config:     cfg.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.live[id] = inst
	return inst.snapshot()
}

// snapshot returns a deep copy that later updates cannot reach.
func (inst *Instance) snapshot() Instance {
	out := *inst
	out.Config = inst.Config.Clone()
	return out
}

// Get returns a deep copy of a live instance.
func (r *Registry) Get(id string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.live[id]
	if !ok {
		return Instance{}, false
	}
	return inst.snapshot(), true
}

// Update mutates a live chart in place, keeping its generation. Copies
// handed out earlier are not affected.
func (r *Registry) Update(id string, fn func(*Config)) (Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.live[id]
	if !ok {
		return Instance{}, fmt.Errorf("%w: %s", ErrUnknownChart, id)
	}
	fn(&inst.Config)
	inst.UpdatedAt = r.now()
	return inst.snapshot(), nil
}

// Destroy removes a live chart. Destroying an absent chart is a no-op.
func (r *Registry) Destroy(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[id]; !ok {
		return false
	}
	delete(r.live, id)
	return true
}

// DestroyAll removes every live chart and returns how many there were.
func (r *Registry) DestroyAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.live)
	clear(r.live)
	return n
}

// IDs returns the live chart ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live charts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
