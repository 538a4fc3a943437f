// Package testrun tracks server-side test executions per test case.
package testrun

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
)

// Status of the latest execution request of a test case.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

var (
	// ErrSuperseded is returned by Run when a newer execution of the same
	// test was requested before this one resolved.
	ErrSuperseded = errors.New("testrun: superseded by a newer execution")
	// ErrDeleted is returned by Run when the test was deleted while running.
	ErrDeleted = errors.New("testrun: test case was deleted")
)

// Executor is the slice of the resource service the tracker needs.
type Executor interface {
	ExecuteTest(ctx context.Context, snippetID, testID string) (model.TestExecutionResult, error)
	DeleteTest(ctx context.Context, snippetID, testID string) (string, error)
}

// Execution is the tracked state of one test case.
type Execution struct {
	SnippetID string
	TestID    string
	Status    Status
	Result    *model.TestExecutionResult
	Err       error
	Seq       uint64
	StartedAt time.Time
}

type runKey struct {
	snippetID string
	testID    string
}

// Tracker is safe for concurrent use. Executions of different tests run
// independently; for one test only the most recently requested execution
// decides the tracked state.
type Tracker struct {
	exec Executor
	now  func() time.Time

	mu        sync.Mutex
	runs      map[runKey]*Execution
	seq       uint64
	listeners map[uint64]func(Execution)
	nextID    uint64
	pending   []Execution
	draining  bool
}

func NewTracker(exec Executor) *Tracker {
	return &Tracker{
		exec:      exec,
		now:       time.Now,
		runs:      make(map[runKey]*Execution),
		listeners: make(map[uint64]func(Execution)),
	}
}

// Get returns the tracked execution, Idle when none was requested.
func (t *Tracker) Get(snippetID, testID string) Execution {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.runs[runKey{snippetID, testID}]; ok {
		return *e
	}
	return Execution{SnippetID: snippetID, TestID: testID, Status: StatusIdle}
}

// Snapshot returns every tracked execution of a snippet ordered by test id.
func (t *Tracker) Snapshot(snippetID string) []Execution {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Execution
	for k, e := range t.runs {
		if k.snippetID == snippetID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestID < out[j].TestID })
	return out
}

// Subscribe registers fn for every tracked state change.
func (t *Tracker) Subscribe(fn func(Execution)) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Run executes a test and waits for its outcome. The tracked state moves to
// Running at once and to Completed or Failed when this request resolves,
// unless a newer request for the same test was made or the test was deleted
// in the meantime; then the outcome is discarded and Run reports
// ErrSuperseded or ErrDeleted alongside the result.
func (t *Tracker) Run(ctx context.Context, snippetID, testID string) (model.TestExecutionResult, error) {
	key := runKey{snippetID, testID}
	t.mu.Lock()
	t.seq++
	seq := t.seq
	e := &Execution{SnippetID: snippetID, TestID: testID, Status: StatusRunning, Seq: seq, StartedAt: t.now()}
	t.runs[key] = e
	t.queueLocked(*e)
	t.mu.Unlock()
	t.flush()

	res, err := t.exec.ExecuteTest(ctx, snippetID, testID)

	t.mu.Lock()
	current, ok := t.runs[key]
	switch {
	case !ok:
		t.mu.Unlock()
		logger.WithComponent("testrun").Debugf("discarding result of deleted test %s/%s", snippetID, testID)
		return res, ErrDeleted
	case current.Seq != seq:
		t.mu.Unlock()
		logger.WithComponent("testrun").Debugf("discarding superseded run %d of %s/%s", seq, snippetID, testID)
		return res, ErrSuperseded
	}
	if err != nil {
		current.Status = StatusFailed
		current.Err = err
	} else {
		r := res
		current.Status = StatusCompleted
		current.Result = &r
	}
	t.queueLocked(*current)
	t.mu.Unlock()
	t.flush()
	return res, err
}

// Delete removes a test case server-side and forgets its execution state.
func (t *Tracker) Delete(ctx context.Context, snippetID, testID string) (string, error) {
	id, err := t.exec.DeleteTest(ctx, snippetID, testID)
	if err != nil {
		return "", err
	}
	t.Forget(snippetID, testID)
	return id, nil
}

// Forget drops the state of a test deleted by other means. A result still in
// flight for it is discarded when it arrives.
func (t *Tracker) Forget(snippetID, testID string) {
	key := runKey{snippetID, testID}
	t.mu.Lock()
	if _, ok := t.runs[key]; ok {
		delete(t.runs, key)
		t.queueLocked(Execution{SnippetID: snippetID, TestID: testID, Status: StatusIdle})
	}
	t.mu.Unlock()
	t.flush()
}

// ForgetSnippet drops the state of every test of a deleted snippet.
func (t *Tracker) ForgetSnippet(snippetID string) {
	t.mu.Lock()
	for k := range t.runs {
		if k.snippetID == snippetID {
			delete(t.runs, k)
			t.queueLocked(Execution{SnippetID: k.snippetID, TestID: k.testID, Status: StatusIdle})
		}
	}
	t.mu.Unlock()
	t.flush()
}

func (t *Tracker) queueLocked(e Execution) {
	if len(t.listeners) > 0 {
		t.pending = append(t.pending, e)
	}
}

// flush delivers queued changes in order, one drainer at a time.
func (t *Tracker) flush() {
	t.mu.Lock()
	if t.draining {
		t.mu.Unlock()
		return
	}
	t.draining = true
	for len(t.pending) > 0 {
		batch := t.pending
		t.pending = nil
		fns := make([]func(Execution), 0, len(t.listeners))
		ids := make([]uint64, 0, len(t.listeners))
		for id := range t.listeners {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fns = append(fns, t.listeners[id])
		}
		t.mu.Unlock()
		for _, e := range batch {
			for _, fn := range fns {
				fn(e)
			}
		}
		t.mu.Lock()
	}
	t.draining = false
	t.mu.Unlock()
}

// Overlay returns tc with the outcome of a completed execution as its last
// run. Other states leave tc unchanged.
func Overlay(tc model.TestCase, e Execution) model.TestCase {
	if e.Status != StatusCompleted || e.Result == nil || e.TestID != tc.ID {
		return tc
	}
	tc.LastRun = &model.TestRun{
		ExitCode: e.Result.ExitCode,
		Stdout:   e.Result.Stdout,
		Stderr:   e.Result.Stderr,
		At:       e.Result.At,
	}
	return tc
}

// OverlayAll applies the tracked executions of snippetID to tests.
func (t *Tracker) OverlayAll(snippetID string, tests []model.TestCase) []model.TestCase {
	out := make([]model.TestCase, len(tests))
	for i, tc := range tests {
		out[i] = Overlay(tc, t.Get(snippetID, tc.ID))
	}
	return out
}
