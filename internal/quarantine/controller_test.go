package quarantine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sithafal/sithafal/internal/notify"
)

type recordedNote struct {
	level   notify.Level
	message string
}

type recorder struct {
	mu    sync.Mutex
	notes []recordedNote
}

func (r *recorder) Notify(level notify.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, recordedNote{level, message})
}

func (r *recorder) count(level notify.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.level == level {
			n++
		}
	}
	return n
}

func (r *recorder) last() recordedNote {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return recordedNote{}
	}
	return r.notes[len(r.notes)-1]
}

type actionCounter struct {
	mu   sync.Mutex
	rows map[string]int
}

func (a *actionCounter) ObserveAction(action string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rows == nil {
		a.rows = make(map[string]int)
	}
	a.rows[action] += n
}

func scenarioRows() []Row {
	return []Row{
		{ID: "row0", Sender: "a@x.com", Subject: "Invoice overdue", Risk: RiskHigh},
		{ID: "row1", Sender: "b@y.com", Subject: "Team lunch", Risk: RiskMedium},
		{ID: "row2", Sender: "c@z.com", Subject: "Reset your password", Risk: RiskHigh},
	}
}

func ids(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

var always = ConfirmFunc(func(context.Context, string) bool { return true })
var never = ConfirmFunc(func(context.Context, string) bool { return false })

func TestNew_SkipsDuplicates(t *testing.T) {
	rows := append(scenarioRows(), Row{ID: "row1", Sender: "dup"})
	c := New(rows)
	assert.Equal(t, 3, c.Len())

	r, ok := c.Row("row1")
	require.True(t, ok)
	assert.Equal(t, "b@y.com", r.Sender)

	err := c.Add(Row{ID: "row0"})
	assert.True(t, errors.Is(err, ErrDuplicateRow))
}

func TestVisible_MatchesFilterForEveryRow(t *testing.T) {
	c := New(scenarioRows())
	filters := []Filter{
		{Tag: TagAll},
		{Tag: TagHigh},
		{Tag: TagMedium, Query: "lunch"},
		{Tag: TagReleased, Query: "Z.COM"},
		{Tag: TagHigh, Query: "nothing"},
	}
	for _, f := range filters {
		c.SetFilter(f.Tag)
		c.SetQuery(f.Query)
		visible := map[string]bool{}
		for _, r := range c.Visible() {
			visible[r.ID] = true
		}
		for _, r := range c.Rows() {
			assert.Equal(t, f.Matches(r), visible[r.ID], "filter %+v row %s", f, r.ID)
			assert.Equal(t, f.Matches(r), c.IsVisible(r.ID))
		}
	}
	assert.False(t, c.IsVisible("missing"))
}

func TestScenario_FilterAndSearchCombine(t *testing.T) {
	c := New(scenarioRows())

	c.SetFilter(TagHigh)
	assert.Equal(t, []string{"row0", "row2"}, ids(c.Visible()))

	c.SetQuery("b@y")
	assert.Empty(t, c.Visible(), "search must narrow within the tab, not override it")

	c.SetFilter(TagAll)
	assert.Equal(t, []string{"row1"}, ids(c.Visible()))

	assert.Equal(t, Filter{Tag: TagAll, Query: "b@y"}, c.Filter())
}

func TestToggleAll(t *testing.T) {
	c := New(scenarioRows())

	c.ToggleAll(true)
	assert.Equal(t, c.Len(), c.SelectedCount())
	assert.Equal(t, Checked, c.SelectAllState())

	c.ToggleAll(false)
	assert.Equal(t, 0, c.SelectedCount())
	assert.Equal(t, Unchecked, c.SelectAllState())
}

func TestToggleAll_AllPolicyIncludesHiddenRows(t *testing.T) {
	c := New(scenarioRows())
	c.SetFilter(TagHigh)

	c.ToggleAll(true)
	assert.Equal(t, []string{"row0", "row1", "row2"}, c.Selected())
	assert.Equal(t, Checked, c.SelectAllState())
}

func TestToggleAll_VisiblePolicy(t *testing.T) {
	c := New(scenarioRows(), WithPolicy(ToggleVisibleRows))
	assert.Equal(t, ToggleVisibleRows, c.Policy())

	require.NoError(t, c.ToggleRow("row1", true))
	c.SetFilter(TagHigh)

	c.ToggleAll(true)
	assert.Equal(t, []string{"row0", "row2"}, c.Selected(), "hidden selection must be dropped")
	assert.Equal(t, Indeterminate, c.SelectAllState())

	c.ToggleAll(false)
	assert.Empty(t, c.Selected())
}

func TestParseToggleAllPolicy(t *testing.T) {
	p, err := ParseToggleAllPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ToggleAllRows, p)

	p, err = ParseToggleAllPolicy("visible")
	require.NoError(t, err)
	assert.Equal(t, ToggleVisibleRows, p)

	_, err = ParseToggleAllPolicy("some")
	assert.Error(t, err)
}

func TestScenario_SelectAllStateTransitions(t *testing.T) {
	c := New(scenarioRows())

	require.NoError(t, c.ToggleRow("row0", true))
	require.NoError(t, c.ToggleRow("row2", true))
	assert.Equal(t, Indeterminate, c.SelectAllState())

	require.NoError(t, c.ToggleRow("row1", true))
	assert.Equal(t, Checked, c.SelectAllState())

	require.NoError(t, c.ToggleRow("row1", false))
	assert.Equal(t, Indeterminate, c.SelectAllState())
}

func TestToggleRow_UnknownRow(t *testing.T) {
	c := New(scenarioRows())
	err := c.ToggleRow("nope", true)
	assert.True(t, errors.Is(err, ErrUnknownRow))
	assert.Equal(t, 0, c.SelectedCount())
}

func TestSelectAllStateInvariant(t *testing.T) {
	c := New(scenarioRows(), WithConfirmer(always))
	ctx := context.Background()

	check := func(step string) {
		t.Helper()
		n, total := c.SelectedCount(), c.Len()
		state := c.SelectAllState()
		assert.Equal(t, n > 0 && n == total, state == Checked, step)
		assert.Equal(t, n > 0 && n < total, state == Indeterminate, step)
		assert.Equal(t, n == 0, state == Unchecked, step)

		bulk := c.BulkActions()
		assert.Equal(t, n > 0, bulk.Enabled, step)
		assert.Equal(t, n, bulk.Count, step)
	}

	check("initial")
	require.NoError(t, c.ToggleRow("row0", true))
	check("select row0")
	c.ToggleAll(true)
	check("select all")
	require.NoError(t, c.ReleaseRow(ctx, "row1"))
	check("release selected row")
	require.NoError(t, c.ToggleRow("row0", false))
	check("deselect row0")
	_, err := c.DeleteRow(ctx, "row2")
	require.NoError(t, err)
	check("delete last selected row")
	c.ToggleAll(true)
	check("select remaining")
	c.BulkRelease(ctx)
	check("bulk release everything")
}

func TestBulkActionLabels(t *testing.T) {
	c := New(scenarioRows())
	bulk := c.BulkActions()
	assert.False(t, bulk.Enabled)

	c.ToggleAll(true)
	bulk = c.BulkActions()
	assert.True(t, bulk.Enabled)
	assert.Equal(t, "Release (3)", bulk.ReleaseLabel)
	assert.Equal(t, "Delete (3)", bulk.DeleteLabel)
}

func TestBulkRelease_EmptySelection(t *testing.T) {
	rec := &recorder{}
	c := New(scenarioRows(), WithNotifier(rec))

	n := c.BulkRelease(context.Background())
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 1, rec.count(notify.LevelWarning))
	assert.Len(t, rec.notes, 1)
	assert.Equal(t, "Please select emails to release", rec.last().message)
}

func TestBulkDelete_EmptySelectionDoesNotPrompt(t *testing.T) {
	rec := &recorder{}
	prompted := false
	c := New(scenarioRows(), WithNotifier(rec), WithConfirmer(ConfirmFunc(func(context.Context, string) bool {
		prompted = true
		return true
	})))

	assert.Equal(t, 0, c.BulkDelete(context.Background()))
	assert.False(t, prompted)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "Please select emails to delete", rec.last().message)
	assert.Equal(t, 1, rec.count(notify.LevelWarning))
}

func TestReleaseRow(t *testing.T) {
	rec := &recorder{}
	obs := &actionCounter{}
	c := New(scenarioRows(), WithNotifier(rec), WithObserver(obs))
	require.NoError(t, c.ToggleRow("row1", true))

	require.NoError(t, c.ReleaseRow(context.Background(), "row1"))
	assert.Equal(t, []string{"row0", "row2"}, ids(c.Rows()))
	assert.False(t, c.IsSelected("row1"))
	assert.Equal(t, recordedNote{notify.LevelSuccess, "Email released successfully!"}, rec.last())
	assert.Equal(t, 1, obs.rows[ActionRelease])

	// A second release of the same row is a silent no-op.
	err := c.ReleaseRow(context.Background(), "row1")
	assert.True(t, errors.Is(err, ErrUnknownRow))
	assert.Len(t, rec.notes, 1)
	assert.Equal(t, 2, c.Len())
}

func TestActions_NotifyWithRequestContext(t *testing.T) {
	notes := notify.NewCenter(time.Minute, nil)
	defer notes.Close()
	c := New(scenarioRows(), WithNotifier(notes), WithConfirmer(always))

	ctx, seen := notify.Collect(context.Background())
	require.NoError(t, c.ReleaseRow(ctx, "row0"))
	c.BulkDelete(ctx)
	require.NoError(t, c.ReleaseRow(context.Background(), "row1"))

	got := seen.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "Email released successfully!", got[0].Message)
	assert.Equal(t, "Please select emails to delete", got[1].Message)
	assert.Len(t, notes.Active(), 3)
}

func TestDeleteRow_RemovesExactlyOneRow(t *testing.T) {
	for _, selected := range []bool{true, false} {
		c := New(scenarioRows(), WithConfirmer(always))
		require.NoError(t, c.ToggleRow("row0", true))
		if selected {
			require.NoError(t, c.ToggleRow("row2", true))
		}
		beforeTotal, beforeSelected := c.Len(), c.SelectedCount()

		ok, err := c.DeleteRow(context.Background(), "row2")
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, beforeTotal-1, c.Len())
		_, exists := c.Row("row2")
		assert.False(t, exists)
		if selected {
			assert.Equal(t, beforeSelected-1, c.SelectedCount())
		} else {
			assert.Equal(t, beforeSelected, c.SelectedCount())
		}
		assert.True(t, c.IsSelected("row0"))
	}
}

func TestDeleteRow_Declined(t *testing.T) {
	rec := &recorder{}
	var prompt string
	c := New(scenarioRows(), WithNotifier(rec), WithConfirmer(ConfirmFunc(func(_ context.Context, p string) bool {
		prompt = p
		return false
	})))
	require.NoError(t, c.ToggleRow("row0", true))

	ok, err := c.DeleteRow(context.Background(), "row0")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, DeletePrompt, prompt)
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.IsSelected("row0"))
	assert.Empty(t, rec.notes)
}

func TestDeleteRow_ContextConfirmer(t *testing.T) {
	c := New(scenarioRows())

	ok, err := c.DeleteRow(context.Background(), "row0")
	require.NoError(t, err)
	assert.False(t, ok, "no recorded answer means no")

	ok, err = c.DeleteRow(WithConfirmation(context.Background(), true), "row0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestDeleteRow_RowRemovedWhilePromptOpen(t *testing.T) {
	var c *Controller
	c = New(scenarioRows(), WithConfirmer(ConfirmFunc(func(ctx context.Context, _ string) bool {
		require.NoError(t, c.ReleaseRow(ctx, "row1"))
		return true
	})))

	ok, err := c.DeleteRow(context.Background(), "row1")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrUnknownRow))
	assert.Equal(t, 2, c.Len())
}

func TestScenario_BulkDeleteRecomputesCounts(t *testing.T) {
	rec := &recorder{}
	obs := &actionCounter{}
	var prompt string
	c := New(scenarioRows(), WithNotifier(rec), WithObserver(obs), WithConfirmer(ConfirmFunc(func(_ context.Context, p string) bool {
		prompt = p
		return true
	})))
	assert.Equal(t, Counts{Total: 3, High: 2, Medium: 1}, c.Counts())

	require.NoError(t, c.ToggleRow("row0", true))
	require.NoError(t, c.ToggleRow("row1", true))

	n := c.BulkDelete(context.Background())
	assert.Equal(t, 2, n)
	assert.Equal(t, "Are you sure you want to delete 2 emails? This action cannot be undone.", prompt)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, Counts{Total: 1, High: 1}, c.Counts())
	assert.Equal(t, 0, c.SelectedCount())
	assert.Equal(t, recordedNote{notify.LevelSuccess, "2 emails deleted successfully!"}, rec.last())
	assert.Equal(t, 2, obs.rows[ActionBulkDelete])
}

func TestBulkDelete_Declined(t *testing.T) {
	c := New(scenarioRows(), WithConfirmer(never))
	c.ToggleAll(true)

	assert.Equal(t, 0, c.BulkDelete(context.Background()))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3, c.SelectedCount())
}

func TestBulkRelease(t *testing.T) {
	rec := &recorder{}
	c := New(scenarioRows(), WithNotifier(rec))
	require.NoError(t, c.ToggleRow("row0", true))
	require.NoError(t, c.ToggleRow("row2", true))

	assert.Equal(t, 2, c.BulkRelease(context.Background()))
	assert.Equal(t, []string{"row1"}, ids(c.Rows()))
	assert.Empty(t, c.Selected())
	assert.Equal(t, Counts{Total: 1, Medium: 1}, c.Counts())
	assert.Equal(t, "2 emails released successfully!", rec.last().message)
}

func TestView_Snapshot(t *testing.T) {
	c := New(scenarioRows())
	c.SetFilter(TagHigh)
	require.NoError(t, c.ToggleRow("row2", true))

	v := c.View()
	assert.Equal(t, Filter{Tag: TagHigh}, v.Filter)
	require.Len(t, v.Rows, 2)
	assert.False(t, v.Rows[0].Selected)
	assert.True(t, v.Rows[1].Selected)
	assert.Equal(t, Indeterminate, v.SelectAll)
	assert.Equal(t, "Release (1)", v.Bulk.ReleaseLabel)
	assert.Equal(t, Counts{Total: 3, High: 2, Medium: 1}, v.Counts)
}

func TestPreview(t *testing.T) {
	received := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	c := New([]Row{{ID: "p1", Sender: "security@paypa1.com", Subject: "Verify", Received: received, Risk: RiskHigh}})

	p, err := c.Preview("p1")
	require.NoError(t, err)
	assert.Equal(t, "security@paypa1.com", p.Sender)
	assert.Equal(t, "Jan 15, 2024 2:30 PM", p.Date)
	assert.Equal(t, "High Risk", p.Risk)

	_, err = c.Preview("gone")
	assert.True(t, errors.Is(err, ErrUnknownRow))
}

func TestActionsAreTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c := New(scenarioRows(), WithTracerProvider(tp), WithConfirmer(always))
	require.NoError(t, c.ReleaseRow(context.Background(), "row0"))
	c.ToggleAll(true)
	c.BulkDelete(context.Background())

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"quarantine.release", "quarantine.bulk_delete"}, names)
}

func TestConcurrentToggles(t *testing.T) {
	rows := make([]Row, 0, 50)
	for i := 0; i < 50; i++ {
		rows = append(rows, Row{ID: string(rune('A' + i)), Risk: RiskMedium})
	}
	c := New(rows)

	var wg sync.WaitGroup
	for _, r := range rows {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = c.ToggleRow(id, true)
			_ = c.SelectAllState()
		}(r.ID)
	}
	wg.Wait()
	assert.Equal(t, Checked, c.SelectAllState())
}
