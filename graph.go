package taskgraph

import (
	"container/heap"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/singleflight"

	"taskgraph/internal/logging"
	"taskgraph/internal/queue"
	"taskgraph/internal/reporter"
	"taskgraph/internal/store"
)

// Options configures a Graph at construction time ("Construction
// parameters").
type Options struct {
	// WorkspaceDir is required: it houses the Executed-Task Store and token
	// marker files.
	WorkspaceDir string
	// NWorkers selects the worker pool shape:
	//   -1: synchronous, inline execution, no background goroutines.
	//    0: a single background worker.
	//   >=1: that many parallel worker goroutines.
	NWorkers int
	// ReportingInterval enables the Reporter when > 0.
	ReportingInterval time.Duration
	// DelayedStart defers Ready Queue enqueue until Close.
	DelayedStart bool
	// Logger is the shared sink every worker writes through. Defaults to
	// logging.Default() when nil.
	Logger *logging.Logger
}

// Graph is the coordinator: the public surface clients use to submit tasks
// and wait for the DAG to drain.
type Graph struct {
	opts   Options
	store  *store.Store
	logger *logging.Logger
	rep    *reporter.Reporter
	sf     singleflight.Group

	mu            sync.Mutex
	closed        bool
	nextID        int64
	tokenSeq      int64
	tasks         []*task
	byOutput      map[string]*task
	total         int
	terminalCount int
	deferredReady []*task

	firstErr     error
	firstErrTask string

	allDone       chan struct{}
	allDoneClosed bool

	ready *queue.PriorityQueue
}

// New constructs a Graph, starts its Reporter and, for async worker modes,
// starts its worker goroutines.
func New(opts Options) (*Graph, error) {
	if opts.WorkspaceDir == "" {
		return nil, internalError("workspace directory is required")
	}
	if err := os.MkdirAll(opts.WorkspaceDir, 0o755); err != nil {
		return nil, err
	}

	st, err := store.Open(opts.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("taskgraph: opening store: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	g := &Graph{
		opts:     opts,
		store:    st,
		logger:   logger,
		byOutput: make(map[string]*task),
		allDone:  make(chan struct{}),
		ready:    queue.New(),
	}

	g.rep = reporter.New(opts.ReportingInterval, logger, g.sampleCounts)
	g.rep.Start()

	switch {
	case opts.NWorkers < 0:
		// Synchronous mode: no background workers.
	case opts.NWorkers == 0:
		go g.workerLoop()
	default:
		if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
			logger.Debug().Logf(format, args...)
		})); err != nil {
			logger.Warning().Err(err).Log("automaxprocs: failed to adjust GOMAXPROCS")
		}
		for i := 0; i < opts.NWorkers; i++ {
			go g.workerLoop()
		}
	}

	return g, nil
}

// TaskSpec describes one unit of work submitted via AddTask.
type TaskSpec struct {
	// Name is an optional human-readable label; it has no bearing on
	// fingerprinting or scheduling.
	Name string
	// Func is the callable to run. Leave nil (along with Op) to submit a
	// token task.
	Func Func
	// Op is an alternative to Func for stateful callables whose identity
	// must be derived from type plus constructor arguments.
	Op EncapsulatedOp
	// Args and Kwargs form the argument tree the Fingerprint Engine walks.
	Args   []any
	Kwargs map[string]any
	// Deps lists tasks that must reach a terminal state before this one is
	// eligible to become Ready.
	Deps []*Task
	// Targets is the set of paths this task declares it will produce.
	Targets []string
	// Ignore lists paths excluded from fingerprint stat-substitution.
	Ignore []string
	// Priority controls Ready Queue ordering: higher runs earlier among
	// simultaneously Ready tasks.
	Priority int
}

// AddTask submits spec to the graph, returning a handle for waiting on its
// outcome. It fails with an IllegalState GraphError if the graph is closed,
// or if any Target is already declared by another still-tracked task:
// duplicate output declarations are rejected at submission rather than left
// to clobber each other at execution time.
func (g *Graph) AddTask(spec TaskSpec) (*Task, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, illegalState("AddTask called after Close")
	}
	for _, p := range spec.Targets {
		if owner, ok := g.byOutput[p]; ok {
			g.mu.Unlock()
			return nil, illegalState("output %q is already declared by task %q", p, owner.name)
		}
	}

	id := g.nextID
	g.nextID++

	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("task-%d", id)
	}

	fn := spec.Func
	outputs := spec.Targets
	if fn == nil && spec.Op == nil {
		g.tokenSeq++
		marker := filepath.Join(g.opts.WorkspaceDir, ".taskgraph", "tokens", fmt.Sprintf("%d.token", g.tokenSeq))
		fn = tokenFunc(marker)
		outputs = append(append([]string(nil), outputs...), marker)
	}

	deps := make([]*task, 0, len(spec.Deps))
	for _, d := range spec.Deps {
		deps = append(deps, d.t)
	}

	t := newTask(id, name, fn, spec.Op, spec.Args, spec.Kwargs, outputs, spec.Ignore, spec.Priority, deps)

	for _, p := range outputs {
		g.byOutput[p] = t
	}
	g.tasks = append(g.tasks, t)
	g.total++
	g.mu.Unlock()

	t.mu.Lock()
	failedAtSubmission := t.state == StateFailed
	pending := t.pendingDepCount
	t.mu.Unlock()

	switch {
	case failedAtSubmission:
		g.settleFailedInherited(t)
	case pending == 0:
		g.promoteReady(t)
	}

	return &Task{g: g, t: t}, nil
}

// Close marks the graph closed: no further AddTask calls are accepted. In
// DelayedStart mode this is also the moment accumulated tasks are pushed
// onto the Ready Queue — or, in synchronous mode, executed inline in
// priority order, since there are no worker goroutines to drain a queue.
// Idempotent.
func (g *Graph) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	deferred := g.deferredReady
	g.deferredReady = nil
	g.checkAllDoneLocked()
	g.mu.Unlock()

	// Highest priority first, so a worker that pops while the remaining
	// tasks are still being pushed never sees a lower-priority task ahead of
	// a higher-priority one.
	sort.Slice(deferred, func(i, j int) bool {
		a, b := deferred[i], deferred[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return a.id < b.id
	})

	if g.opts.NWorkers < 0 {
		for _, t := range deferred {
			g.execute(context.Background(), t)
		}
		return
	}

	for _, t := range deferred {
		g.ready.Push(t)
	}
}

// Join blocks until every submitted task reaches a terminal state, or until
// ctx is done. It returns (true, nil) iff all tasks terminated without
// failure; (false, nil) if ctx expired first; and (false, *GraphFailure) if
// any task Failed.
func (g *Graph) Join(ctx context.Context) (bool, error) {
	select {
	case <-g.allDone:
	case <-ctx.Done():
		return false, nil
	}

	g.mu.Lock()
	err := g.firstErr
	taskName := g.firstErrTask
	g.mu.Unlock()

	g.rep.Stop()

	if err != nil {
		return false, &GraphFailure{TaskName: taskName, Err: err}
	}
	return true, nil
}

func (g *Graph) sampleCounts() reporter.Counts {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := reporter.Counts{Submitted: g.total}
	for _, t := range g.tasks {
		t.mu.Lock()
		switch t.state {
		case StateComplete:
			c.Completed++
		case StatePrecomputed:
			c.Precomputed++
		case StateFailed:
			c.Failed++
		case StateRunning:
			c.Running++
		}
		t.mu.Unlock()
	}
	return c
}

// checkAllDoneLocked closes g.allDone the moment the graph is both closed
// and every currently-tracked task is terminal. Must be called with g.mu
// held.
func (g *Graph) checkAllDoneLocked() {
	if !g.allDoneClosed && g.closed && g.terminalCount >= g.total {
		g.allDoneClosed = true
		close(g.allDone)
		// Every task that will ever reach Ready has now done so (no more
		// Push calls can follow): safe to unblock worker goroutines parked
		// in Pop.
		g.ready.Close()
	}
}

// promoteReady performs the Submitted->Ready transition (invariant I3:
// fingerprint computed here, no earlier) and either defers enqueue
// (DelayedStart, graph still open), enqueues onto the Ready Queue, or — in
// synchronous mode — executes inline before returning.
func (g *Graph) promoteReady(t *task) {
	t.mu.Lock()
	t.state = StateReady
	t.fingerprint = t.computeFingerprint()
	t.mu.Unlock()

	g.logger.Debug().Str("task", t.name).Str("state", "Ready").Log("state transition")

	g.mu.Lock()
	deferNow := g.opts.DelayedStart && !g.closed
	if deferNow {
		g.deferredReady = append(g.deferredReady, t)
	}
	g.mu.Unlock()
	if deferNow {
		return
	}

	if g.opts.NWorkers < 0 {
		g.execute(context.Background(), t)
		return
	}
	g.ready.Push(t)
}

func (g *Graph) workerLoop() {
	for {
		it, ok := g.ready.Pop()
		if !ok {
			return
		}
		g.execute(context.Background(), it.(*task))
	}
}

type runResult struct {
	precomputed bool
	outputs     []store.OutputStat
}

// execute runs the worker-loop body for t: consult the Store,
// suppress within-graph duplicates via singleflight (I4), execute, verify,
// record, and settle.
func (g *Graph) execute(ctx context.Context, t *task) {
	key := string(t.fingerprint)
	v, err, _ := g.sf.Do(key, func() (any, error) {
		return g.runOnce(ctx, t)
	})

	if err != nil {
		t.finish(StateFailed, err)
		g.onTaskFailed(t, err)
		return
	}

	rr := v.(runResult)
	state := StateComplete
	if rr.precomputed {
		state = StatePrecomputed
	}
	t.finish(state, nil)
	g.onTaskSucceeded(t)
}

// runOnce performs the actual skip-or-execute decision and callable
// invocation. Overlapping execute calls for the same fingerprint share a
// single runOnce call (only the singleflight leader runs it); calls that do
// not overlap in time each run it.
func (g *Graph) runOnce(ctx context.Context, t *task) (runResult, error) {
	if len(t.outputs) > 0 {
		if rec, ok := g.store.Verify(string(t.fingerprint)); ok {
			return runResult{precomputed: true, outputs: rec.Outputs}, nil
		}
	}

	g.logger.Debug().Str("task", t.name).Str("state", "Running").Log("state transition")

	if err := t.invoke(ctx); err != nil {
		g.logger.Build(logiface.LevelError).Err(err).Str("task", t.name).Log("callable failed")
		return runResult{}, callableFailure(t.name, err)
	}

	outputs := make([]store.OutputStat, 0, len(t.outputs))
	for _, p := range t.outputs {
		info, statErr := os.Stat(p)
		if statErr != nil {
			err := missingOutput(t.name, p)
			g.logger.Build(logiface.LevelError).Err(err).Str("task", t.name).Log("declared output missing")
			return runResult{}, err
		}
		size := info.Size()
		if info.IsDir() {
			size = 0
		}
		outputs = append(outputs, store.OutputStat{Path: p, Size: size, ModTime: info.ModTime().Unix()})
	}

	if len(t.outputs) > 0 {
		if err := g.store.Put(string(t.fingerprint), outputs); err != nil {
			return runResult{}, internalError("recording store entry: %v", err)
		}
	}

	return runResult{outputs: outputs}, nil
}

func (g *Graph) onTaskSucceeded(t *task) {
	g.logger.Debug().Str("task", t.name).Str("state", t.snapshotState().String()).Log("state transition")

	g.mu.Lock()
	g.terminalCount++
	g.checkAllDoneLocked()
	g.mu.Unlock()

	for _, d := range t.sortedDependents() {
		d.mu.Lock()
		if d.state != StateSubmitted {
			d.mu.Unlock()
			continue
		}
		d.pendingDepCount--
		ready := d.pendingDepCount == 0
		d.mu.Unlock()
		if ready {
			g.promoteReady(d)
		}
	}
}

func (g *Graph) onTaskFailed(t *task, err error) {
	g.logger.Build(logiface.LevelError).Err(err).Str("task", t.name).Log("task failed")

	g.mu.Lock()
	g.terminalCount++
	if g.firstErr == nil {
		g.firstErr = err
		g.firstErrTask = t.name
	}
	g.checkAllDoneLocked()
	g.mu.Unlock()

	g.propagateFailure(t, err)
}

// settleFailedInherited finishes a task that was already marked Failed at
// submission time (its dependency had already Failed before this task was
// constructed).
func (g *Graph) settleFailedInherited(t *task) {
	close(t.done)
	g.mu.Lock()
	g.terminalCount++
	if g.firstErr == nil {
		g.firstErr = t.err
		g.firstErrTask = t.name
	}
	g.checkAllDoneLocked()
	g.mu.Unlock()
	g.logger.Build(logiface.LevelError).Err(t.err).Str("task", t.name).Log("task failed (inherited at submission)")
}

// propagateFailure marks every transitively-dependent Submitted task Failed
// without executing it (invariant I6), via a deterministic BFS ordered by
// task id — the same min-heap-over-canonical-index traversal idiom as
// samgonzalezalberto-script-weaver/internal/dag/state_machine.go's
// FailAndPropagate, generalized from graph-node indices to Task Record ids.
func (g *Graph) propagateFailure(origin *task, err error) {
	visited := make(map[int64]bool)
	visited[origin.id] = true

	h := &idHeap{}
	heap.Init(h)
	byID := make(map[int64]*task)
	for _, d := range origin.sortedDependents() {
		byID[d.id] = d
		heap.Push(h, d.id)
	}

	for h.Len() > 0 {
		id := heap.Pop(h).(int64)
		if visited[id] {
			continue
		}
		visited[id] = true
		d := byID[id]

		d.mu.Lock()
		shouldFail := d.state == StateSubmitted
		if shouldFail {
			d.state = StateFailed
			d.err = err
		}
		d.mu.Unlock()

		if !shouldFail {
			continue
		}

		close(d.done)
		g.mu.Lock()
		g.terminalCount++
		g.checkAllDoneLocked()
		g.mu.Unlock()
		g.logger.Debug().Str("task", d.name).Str("state", "Failed").Log("state transition (propagated)")

		for _, nd := range d.sortedDependents() {
			if !visited[nd.id] {
				byID[nd.id] = nd
				heap.Push(h, nd.id)
			}
		}
	}
}

func (t *task) snapshotState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

type idHeap []int64

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)         { *h = append(*h, x.(int64)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// tokenFunc builds the callable backing a token Task Record:
// it writes a single sentinel marker file. AddTask appends that same path to
// the task's declared outputs, so token tasks participate in memoization
// like any other task.
func tokenFunc(marker string) Func {
	return func(ctx context.Context, args []any, kwargs map[string]any) error {
		if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
			return err
		}
		return os.WriteFile(marker, []byte{}, 0o644)
	}
}
