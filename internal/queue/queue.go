// Package queue implements the crawl frontier: a priority queue with
// URL deduplication and in-flight accounting, backed by a heap keyed
// on (priority, insertion sequence) plus a visited set.
package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/scrapevault/scrapevault/internal/models"
)

// Stats is a snapshot of CrawlQueue counters. TotalQueued, Completed
// and Failed only grow within a run; Unfinished rises on Put and falls
// on TaskDone.
type Stats struct {
	TotalQueued int
	Completed   int
	Failed      int
	Unfinished  int
}

type entry struct {
	task models.CrawlTask
	seq  int64
}

type priorityHeap []entry

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// CrawlQueue is the bounded-wait, deduplicated, priority-ordered
// frontier. All mutations are guarded by a single mutex; Get blocks on
// a condition variable up to a timeout.
type CrawlQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	heap    priorityHeap
	visited map[string]bool
	nextSeq int64

	totalQueued int
	completed   int
	failed      int
	unfinished  int

	closed bool
}

// New creates an empty CrawlQueue.
func New() *CrawlQueue {
	q := &CrawlQueue{
		heap:    make(priorityHeap, 0),
		visited: make(map[string]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put enqueues task unless its URL was already put since the queue was
// created or last cleared, in which case it returns false without
// enqueueing. It also returns false once the queue is closed.
func (q *CrawlQueue) Put(task models.CrawlTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.visited[task.URL] {
		return false
	}

	q.visited[task.URL] = true
	heap.Push(&q.heap, entry{task: task, seq: q.nextSeq})
	q.nextSeq++
	q.totalQueued++
	q.unfinished++

	q.cond.Signal()
	return true
}

// Get pops the highest-priority task (lowest Priority value, ties
// broken by insertion order), blocking up to timeout. It does not
// remove the URL from the visited set. Returns ok=false on timeout or
// if the queue was closed with nothing left to deliver.
func (q *CrawlQueue) Get(timeout time.Duration) (task models.CrawlTask, ok bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) == 0 {
		if q.closed {
			return models.CrawlTask{}, false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return models.CrawlTask{}, false
		}
		if !q.waitWithTimeout(remaining) {
			return models.CrawlTask{}, false
		}
	}

	e := heap.Pop(&q.heap).(entry)
	return e.task, true
}

// waitWithTimeout blocks on q.cond for at most d, returning false if it
// timed out. sync.Cond has no native timed wait, so a helper goroutine
// nudges the condition variable after d elapses.
func (q *CrawlQueue) waitWithTimeout(d time.Duration) bool {
	timedOut := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		close(timedOut)
		q.cond.Broadcast()
	})
	defer timer.Stop()

	before := q.nextSeq
	closedBefore := q.closed
	q.cond.Wait()

	select {
	case <-timedOut:
		// Only report a timeout if nothing actually changed; a real
		// Put/Close racing the timer still gets observed by the caller's loop.
		return q.nextSeq != before || q.closed != closedBefore
	default:
		return true
	}
}

// TaskDone records the outcome of a previously popped task and
// decrements Unfinished.
func (q *CrawlQueue) TaskDone(success bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if success {
		q.completed++
	} else {
		q.failed++
	}
	q.unfinished--
}

// Stats returns a snapshot of the counters.
func (q *CrawlQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		TotalQueued: q.totalQueued,
		Completed:   q.completed,
		Failed:      q.failed,
		Unfinished:  q.unfinished,
	}
}

// IsEmpty reports whether the heap has no ready items (ignores
// in-flight work; combine with Stats().Unfinished == 0 to detect run
// completion).
func (q *CrawlQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap) == 0
}

// Unfinished returns the count of queued-but-unpopped plus
// currently-processing items.
func (q *CrawlQueue) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Clear drops queued-but-unstarted items and resets the visited set.
// Items already popped by workers are unaffected; the worker's own
// stop-flag check governs whether it keeps processing them.
func (q *CrawlQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.heap = q.heap[:0]
	q.visited = make(map[string]bool)
	q.cond.Broadcast()
}

// Close unblocks any waiting Get calls once the frontier will never
// receive more work.
func (q *CrawlQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
