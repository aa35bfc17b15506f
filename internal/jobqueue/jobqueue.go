// Package jobqueue implements the gateway's asynchronous job queue: a
// fixed-size slot table plus a FIFO of slot ids, grounded on
// original_source's gateway_core_jobs component
// (job_queue_submit.c, job_queue_worker.c, job_queue_state.c).
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/status"
)

// Clock provides the queue's notion of "now in milliseconds".
type Clock interface {
	NowMs() uint64
}

// Policy executes one job's work outside the queue lock and returns a
// JSON-serializable result, or an error to be recorded as a failure.
type Policy func(ctx context.Context, job gwtypes.JobSlot) (result any, err error)

// Queue is the owned handle for the job slot table. The zero value is
// not usable; construct with New.
type Queue struct {
	mu       sync.Mutex
	clock    Clock
	bus      *eventbus.Bus
	slots    [config.MaxJobSlots]gwtypes.JobSlot
	fifo     []int
	nextID   uint32
	metrics  gwtypes.JobMetrics
	latency  []uint64
	policies map[gwtypes.JobType]Policy

	workCh chan int
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a job queue. Start must be called to run its worker.
func New(clock Clock, bus *eventbus.Bus) *Queue {
	return &Queue{
		clock:    clock,
		bus:      bus,
		policies: make(map[gwtypes.JobType]Policy),
		workCh:   make(chan int, config.MaxJobSlots),
	}
}

// RegisterPolicy binds the executor for a job type. Call before Start.
func (q *Queue) RegisterPolicy(t gwtypes.JobType, p Policy) {
	q.policies[t] = p
}

// Start launches the single worker goroutine.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(1)
	go q.run()
}

// Stop halts the worker and waits for it to exit.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Submit enqueues a job, deduplicating concurrent identical requests
// (same type, and same rebootDelayMs for Reboot only) already Queued or
// Running. rebootDelayMs is ignored for non-Reboot types.
func (q *Queue) Submit(jobType gwtypes.JobType, rebootDelayMs uint32) (uint32, error) {
	q.mu.Lock()

	now := q.clock.NowMs()
	q.pruneTerminalLocked(now)

	for i := range q.slots {
		s := &q.slots[i]
		if !s.Used || s.Type != jobType {
			continue
		}
		if s.State != gwtypes.JobQueued && s.State != gwtypes.JobRunning {
			continue
		}
		if jobType == gwtypes.JobReboot && s.RebootDelayMs != rebootDelayMs {
			continue
		}
		q.metrics.DedupReusedTotal++
		id := s.ID
		q.mu.Unlock()
		return id, nil
	}

	idx := q.findFreeSlotLocked(now)
	if idx < 0 {
		q.mu.Unlock()
		return 0, status.New(status.NoMem, "job queue is full")
	}

	q.nextID++
	if q.nextID == 0 {
		q.nextID = 1
	}
	id := q.nextID

	q.slots[idx] = gwtypes.JobSlot{
		Used:          true,
		ID:            id,
		Type:          jobType,
		State:         gwtypes.JobQueued,
		CreatedMs:     now,
		UpdatedMs:     now,
		RebootDelayMs: rebootDelayMs,
	}
	q.metrics.SubmittedTotal++
	q.metrics.QueueDepthCurrent++
	if q.metrics.QueueDepthCurrent > q.metrics.QueueDepthPeak {
		q.metrics.QueueDepthPeak = q.metrics.QueueDepthCurrent
	}
	q.mu.Unlock()

	select {
	case q.workCh <- idx:
	default:
		q.mu.Lock()
		q.slots[idx].Used = false
		q.metrics.QueueDepthCurrent--
		q.mu.Unlock()
		return 0, status.New(status.NoMem, "job queue fifo is full")
	}

	return id, nil
}

// pruneTerminalLocked evicts terminal slots whose age exceeds the
// terminal TTL. Must be called with mu held.
func (q *Queue) pruneTerminalLocked(now uint64) {
	for i := range q.slots {
		s := &q.slots[i]
		if !s.Used {
			continue
		}
		if s.State != gwtypes.JobSucceeded && s.State != gwtypes.JobFailed {
			continue
		}
		if now-s.UpdatedMs >= uint64(config.JobTerminalTTL.Milliseconds()) {
			*s = gwtypes.JobSlot{}
		}
	}
}

// findFreeSlotLocked returns a free slot index, evicting the oldest
// terminal slot if none is free. Must be called with mu held.
func (q *Queue) findFreeSlotLocked(now uint64) int {
	for i := range q.slots {
		if !q.slots[i].Used {
			return i
		}
	}

	oldest := -1
	for i := range q.slots {
		s := &q.slots[i]
		if s.State != gwtypes.JobSucceeded && s.State != gwtypes.JobFailed {
			continue
		}
		if oldest < 0 || s.UpdatedMs < q.slots[oldest].UpdatedMs {
			oldest = i
		}
	}
	if oldest >= 0 {
		q.slots[oldest] = gwtypes.JobSlot{}
		return oldest
	}
	return -1
}

// Get returns a copy of the slot for id, or NotFound.
func (q *Queue) Get(id uint32) (gwtypes.JobSlot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.slots {
		if q.slots[i].Used && q.slots[i].ID == id {
			return q.slots[i], nil
		}
	}
	return gwtypes.JobSlot{}, status.New(status.NotFound, "job not found")
}

// Metrics returns a copy of the queue's counters, with p95 latency
// freshly derived from the latency window.
func (q *Queue) Metrics() gwtypes.JobMetrics {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.metrics
	m.LatencyP95Ms = p95(q.latency)
	return m
}

// p95 sorts a copy of window and returns the element at index
// ceil(0.95*n)-1, clamped to [0, n-1]. For n == 0 it returns 0.
func p95(window []uint64) uint64 {
	n := len(window)
	if n == 0 {
		return 0
	}
	sorted := append([]uint64(nil), window...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int((95*n + 99) / 100)
	idx--
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case idx := <-q.workCh:
			q.execute(idx)
		}
	}
}

func (q *Queue) execute(idx int) {
	q.mu.Lock()
	if !q.slots[idx].Used {
		q.mu.Unlock()
		return
	}
	now := q.clock.NowMs()
	q.slots[idx].State = gwtypes.JobRunning
	q.slots[idx].UpdatedMs = now
	job := q.slots[idx]
	q.mu.Unlock()

	policy, ok := q.policies[job.Type]
	var result any
	var err error
	if ok {
		result, err = policy(q.ctx, job)
	} else {
		err = status.New(status.NotSupported, fmt.Sprintf("no policy registered for job type %s", job.Type))
	}

	q.finalize(idx, job, result, err)

	if job.Type == gwtypes.JobLqiRefresh && err == nil {
		q.bus.Publish(eventbus.Event{Topic: eventbus.LQIStateChanged, Payload: nil})
	}
}

func (q *Queue) finalize(idx int, job gwtypes.JobSlot, result any, jobErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.slots[idx].Used || q.slots[idx].ID != job.ID {
		return
	}

	now := q.clock.NowMs()
	latency := now - job.CreatedMs

	q.latency = append(q.latency, latency)
	if len(q.latency) > config.JobLatencyWindow {
		q.latency = q.latency[len(q.latency)-config.JobLatencyWindow:]
	}

	q.slots[idx].UpdatedMs = now
	q.metrics.QueueDepthCurrent--

	if jobErr != nil {
		q.slots[idx].State = gwtypes.JobFailed
		q.slots[idx].ErrCode = status.KindOf(jobErr).String()
		payload := fmt.Sprintf(`{"error":%q}`, q.slots[idx].ErrCode)
		q.slots[idx].HasResult = true
		q.slots[idx].ResultJSON = truncate(payload, config.JobResultMaxLen)
		q.metrics.FailedTotal++
		log.Warn().Uint32("job_id", job.ID).Str("type", job.Type.String()).Err(jobErr).Msg("job failed")
		return
	}

	q.slots[idx].State = gwtypes.JobSucceeded
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte(`{"error":"fail"}`)
	}
	q.slots[idx].HasResult = true
	q.slots[idx].ResultJSON = truncate(string(raw), config.JobResultMaxLen)
	q.metrics.CompletedTotal++
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
