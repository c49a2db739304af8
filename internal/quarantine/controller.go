package quarantine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sithafal/sithafal/internal/quarantine"

// ErrUnknownRow is returned for ids that are not (or no longer) registered.
var ErrUnknownRow = errors.New("unknown quarantine row")

// ErrDuplicateRow is returned when adding a row whose id is already taken.
var ErrDuplicateRow = errors.New("duplicate quarantine row")

// SelectAllState is the tri-state of the master checkbox.
type SelectAllState int

const (
	Unchecked SelectAllState = iota
	Indeterminate
	Checked
)

func (s SelectAllState) String() string {
	switch s {
	case Indeterminate:
		return "indeterminate"
	case Checked:
		return "checked"
	default:
		return "unchecked"
	}
}

// MarshalText renders the state by name in JSON output.
func (s SelectAllState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func selectAllState(selected, total int) SelectAllState {
	switch {
	case selected == 0:
		return Unchecked
	case selected == total:
		return Checked
	default:
		return Indeterminate
	}
}

// ToggleAllPolicy decides which rows the master checkbox acts on.
type ToggleAllPolicy string

const (
	// ToggleAllRows selects every registered row, including rows hidden by
	// the active filter.
	ToggleAllRows ToggleAllPolicy = "all"
	// ToggleVisibleRows selects exactly the visible rows. Hidden rows are
	// deselected so no stale selection survives behind the filter.
	ToggleVisibleRows ToggleAllPolicy = "visible"
)

// ParseToggleAllPolicy maps a config value to a policy.
func ParseToggleAllPolicy(s string) (ToggleAllPolicy, error) {
	switch p := ToggleAllPolicy(s); p {
	case "", ToggleAllRows:
		return ToggleAllRows, nil
	case ToggleVisibleRows:
		return p, nil
	default:
		return "", fmt.Errorf("invalid toggle-all policy %q (want all or visible)", s)
	}
}

// BulkActions is the state of the bulk release/delete buttons.
type BulkActions struct {
	Enabled      bool   `json:"enabled"`
	Count        int    `json:"count"`
	ReleaseLabel string `json:"release_label"`
	DeleteLabel  string `json:"delete_label"`
}

func bulkActions(n int) BulkActions {
	return BulkActions{
		Enabled:      n > 0,
		Count:        n,
		ReleaseLabel: fmt.Sprintf("Release (%d)", n),
		DeleteLabel:  fmt.Sprintf("Delete (%d)", n),
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets where action messages go.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithConfirmer sets the confirmation step for deletes.
func WithConfirmer(cf Confirmer) Option {
	return func(c *Controller) {
		if cf != nil {
			c.confirmer = cf
		}
	}
}

// WithObserver registers an action observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithPolicy sets the toggle-all policy.
func WithPolicy(p ToggleAllPolicy) Option {
	return func(c *Controller) {
		if p != "" {
			c.policy = p
		}
	}
}

// Controller is the row registry of one quarantine page together with its
// filter and selection. It is safe for concurrent use.
//
// The selection is always a subset of the registered rows: every removal
// drops the row from the selection under the same lock.
type Controller struct {
	mu       sync.Mutex
	order    []string
	rows     map[string]Row
	selected map[string]struct{}
	filter   Filter

	policy    ToggleAllPolicy
	notifier  Notifier
	confirmer Confirmer
	observer  Observer
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New registers rows in order. Rows with a duplicate id are skipped.
func New(rows []Row, opts ...Option) *Controller {
	c := &Controller{
		rows:      make(map[string]Row, len(rows)),
		selected:  make(map[string]struct{}),
		filter:    Filter{Tag: TagAll},
		policy:    ToggleAllRows,
		notifier:  nopNotifier{},
		confirmer: ContextConfirmer,
		observer:  nopObserver{},
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(c)
	}
	for _, r := range rows {
		if err := c.Add(r); err != nil {
			c.logger.Warn("skipping quarantine row", "id", r.ID, "error", err)
		}
	}
	return c
}

// Add registers r at the end of the table.
func (c *Controller) Add(r Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rows[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRow, r.ID)
	}
	c.rows[r.ID] = r
	c.order = append(c.order, r.ID)
	return nil
}

// Policy returns the toggle-all policy in effect.
func (c *Controller) Policy() ToggleAllPolicy {
	return c.policy
}

// Len returns the number of registered rows.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Rows returns every registered row in table order.
func (c *Controller) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Row, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.rows[id])
	}
	return out
}

// Row looks up a registered row.
func (c *Controller) Row(id string) (Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rows[id]
	return r, ok
}

// Filter returns the active filter.
func (c *Controller) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetFilter switches the filter tab. The search query is kept.
func (c *Controller) SetFilter(t Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Tag = t
}

// SetQuery replaces the search query. The tab is kept.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Query = q
}

// Visible returns the rows that pass the active filter, in table order.
func (c *Controller) Visible() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked()
}

func (c *Controller) visibleLocked() []Row {
	var out []Row
	for _, id := range c.order {
		if r := c.rows[id]; c.filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// IsVisible reports whether the row exists and passes the active filter.
func (c *Controller) IsVisible(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rows[id]
	return ok && c.filter.Matches(r)
}

// ToggleAll sets the selection of the rows covered by the policy.
func (c *Controller) ToggleAll(checked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.selected)
	if !checked {
		return
	}
	for _, id := range c.order {
		if c.policy == ToggleVisibleRows && !c.filter.Matches(c.rows[id]) {
			continue
		}
		c.selected[id] = struct{}{}
	}
}

// ToggleRow sets the selection of a single row.
func (c *Controller) ToggleRow(id string, checked bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	if checked {
		c.selected[id] = struct{}{}
	} else {
		delete(c.selected, id)
	}
	return nil
}

// IsSelected reports whether the row is selected.
func (c *Controller) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[id]
	return ok
}

// Selected returns the selected ids in table order.
func (c *Controller) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedLocked()
}

func (c *Controller) selectedLocked() []string {
	out := make([]string, 0, len(c.selected))
	for _, id := range c.order {
		if _, ok := c.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// SelectedCount returns the size of the selection.
func (c *Controller) SelectedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selected)
}

// SelectAllState derives the master checkbox from the selection size and
// the total number of rows.
func (c *Controller) SelectAllState() SelectAllState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return selectAllState(len(c.selected), len(c.order))
}

// BulkActions derives the bulk button state from the selection size.
func (c *Controller) BulkActions() BulkActions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bulkActions(len(c.selected))
}

// Counts re-derives the aggregate figures from the current rows.
func (c *Controller) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return countRows(c.rowsLocked())
}

func (c *Controller) rowsLocked() []Row {
	out := make([]Row, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.rows[id])
	}
	return out
}

// Preview returns the modal content for a row.
func (c *Controller) Preview(id string) (Preview, error) {
	r, ok := c.Row(id)
	if !ok {
		return Preview{}, fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	return newPreview(r), nil
}

// RowView is a visible row plus its checkbox state.
type RowView struct {
	Row
	Selected bool `json:"selected"`
}

// View is a consistent snapshot of everything the table renders.
type View struct {
	Filter    Filter          `json:"filter"`
	Rows      []RowView       `json:"rows"`
	Counts    Counts          `json:"counts"`
	SelectAll SelectAllState  `json:"select_all"`
	Bulk      BulkActions     `json:"bulk"`
	Policy    ToggleAllPolicy `json:"policy"`
}

// View snapshots the table under a single lock.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Filter:    c.filter,
		Counts:    countRows(c.rowsLocked()),
		SelectAll: selectAllState(len(c.selected), len(c.order)),
		Bulk:      bulkActions(len(c.selected)),
		Policy:    c.policy,
	}
	for _, r := range c.visibleLocked() {
		_, sel := c.selected[r.ID]
		v.Rows = append(v.Rows, RowView{Row: r, Selected: sel})
	}
	return v
}

// removeLocked drops a row and its selection together. It returns false
// when the row is already gone.
func (c *Controller) removeLocked(id string) bool {
	if _, ok := c.rows[id]; !ok {
		return false
	}
	delete(c.rows, id)
	delete(c.selected, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}
