package recalcworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// RecalcJob is one user-cache recalculation unit.
type RecalcJob struct {
	UserID  string
	Handler func(ctx context.Context) error
}

// PoolStats contains real-time counters for the pool.
type PoolStats struct {
	NumWorkers      int   `json:"num_workers"`
	QueueSize       int   `json:"queue_size"`
	TotalDispatched int64 `json:"total_dispatched"`
	TotalProcessed  int64 `json:"total_processed"`
	TotalDropped    int64 `json:"total_dropped"`
	TotalErrors     int64 `json:"total_errors"`
}

// Pool runs cache recalculations across a fixed set of workers. Jobs are
// sharded by user id, so all recalculations for one user land on the same
// worker and per-user write ordering is preserved.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopCh     chan struct{}

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
}

type worker struct {
	id       int
	jobQueue chan RecalcJob
	pool     *Pool
}

func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the workers. They run until Stop is called or ctx is done.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		w := &worker{
			id:       i,
			jobQueue: make(chan RecalcJob, p.queueSize),
			pool:     p,
		}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run(ctx)
	}
	logrus.Infof("[RECALC] Worker pool started with %d workers (queue %d each)", p.numWorkers, p.queueSize)
}

// Dispatch enqueues a job on the worker owning the user's shard. Returns
// false when that worker's queue is full and the job was dropped.
func (p *Pool) Dispatch(job RecalcJob) bool {
	w := p.workers[p.shardFor(job.UserID)]
	select {
	case w.jobQueue <- job:
		atomic.AddInt64(&p.totalDispatched, 1)
		return true
	default:
		atomic.AddInt64(&p.totalDropped, 1)
		logrus.Warnf("[RECALC] Queue full on worker %d, dropping job for user %s", w.id, job.UserID)
		return false
	}
}

// Drain blocks until every dispatched job has been processed.
func (p *Pool) Drain() {
	for atomic.LoadInt64(&p.totalProcessed) < atomic.LoadInt64(&p.totalDispatched) {
		select {
		case <-p.stopCh:
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Stop shuts the pool down and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		for _, w := range p.workers {
			close(w.jobQueue)
		}
		p.wg.Wait()
		logrus.Info("[RECALC] Worker pool stopped")
	})
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
	}
}

func (p *Pool) shardFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	for job := range w.jobQueue {
		if err := job.Handler(ctx); err != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.WithError(err).Errorf("[RECALC] Worker %d failed for user %s", w.id, job.UserID)
		}
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}
}
