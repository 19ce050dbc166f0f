package queue

import (
	"testing"
	"time"
)

type testItem struct {
	priority int
	submitID int64
	name     string
}

func (t testItem) Priority() int   { return t.priority }
func (t testItem) SubmitID() int64 { return t.submitID }

func TestPriorityQueue_HigherPriorityFirst(t *testing.T) {
	q := New()
	q.Push(testItem{priority: 1, submitID: 1, name: "low"})
	q.Push(testItem{priority: 5, submitID: 2, name: "high"})

	it, ok := q.Pop()
	if !ok || it.(testItem).name != "high" {
		t.Fatalf("expected high-priority item first, got %+v ok=%v", it, ok)
	}
}

func TestPriorityQueue_EqualPriorityFollowsSubmitOrder(t *testing.T) {
	q := New()
	q.Push(testItem{priority: 0, submitID: 2, name: "second"})
	q.Push(testItem{priority: 0, submitID: 1, name: "first"})

	it, _ := q.Pop()
	if it.(testItem).name != "first" {
		t.Fatalf("expected submission-order tie-break, got %+v", it)
	}
}

func TestPriorityQueue_DescendingPriorityOrder(t *testing.T) {
	q := New()
	for i := 9; i >= 0; i-- {
		q.Push(testItem{priority: i, submitID: int64(9 - i), name: "x"})
	}
	var got []int
	for i := 0; i < 10; i++ {
		it, ok := q.Pop()
		if !ok {
			t.Fatalf("expected item")
		}
		got = append(got, it.(testItem).priority)
	}
	for i, p := range got {
		if p != 9-i {
			t.Fatalf("expected descending priority order, got %v", got)
		}
	}
}

func TestPriorityQueue_CloseUnblocksPop(t *testing.T) {
	q := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected Pop to return ok=false after Close")
		}
	case <-time.After(time.Second):
		t.Fatalf("Pop did not unblock after Close")
	}
}
