package taskgraph

import "context"

// Task is the handle AddTask returns: a reference to one submitted Task
// Record that callers use to wait on its individual outcome.
type Task struct {
	g *Graph
	t *task
}

// Name returns the task's label (its assigned default if none was given).
func (tk *Task) Name() string { return tk.t.name }

// State returns the task's current lifecycle state.
func (tk *Task) State() State { return tk.t.snapshotState() }

// Join blocks until this task reaches a terminal state or ctx is done.
//
// In DelayedStart mode, calling Join before the owning Graph has been
// Closed always fails with an IllegalState GraphError:
// delayed mode accumulates priorities across the whole graph, so a
// single-task wait before Close could deadlock forever.
func (tk *Task) Join(ctx context.Context) (bool, error) {
	tk.g.mu.Lock()
	delayedAndOpen := tk.g.opts.DelayedStart && !tk.g.closed
	tk.g.mu.Unlock()
	if delayedAndOpen {
		return false, illegalState("Task joined even though taskgraph has delayed start and the graph is not yet closed")
	}

	select {
	case <-tk.t.done:
	case <-ctx.Done():
		return false, nil
	}

	tk.t.mu.Lock()
	state := tk.t.state
	err := tk.t.err
	tk.t.mu.Unlock()

	if state == StateFailed {
		return false, &GraphFailure{TaskName: tk.t.name, Err: err}
	}
	return true, nil
}
