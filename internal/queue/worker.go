package queue

import (
	"context"
	"log"
	"sync"
	"time"
)

// Worker processes jobs from a queue
type Worker struct {
	queue      *Queue
	jobTypes   []JobType
	numWorkers int
	wg         sync.WaitGroup
	quit       chan struct{}
}

// NewWorker creates a new worker
func NewWorker(q *Queue, jobTypes []JobType, numWorkers int) *Worker {
	return &Worker{
		queue:      q,
		jobTypes:   jobTypes,
		numWorkers: numWorkers,
		quit:       make(chan struct{}),
	}
}

// Start starts the worker goroutines
func (w *Worker) Start() {
	log.Printf("Starting %d workers for %v", w.numWorkers, w.jobTypes)
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}
}

// Stop stops the worker and waits for in-flight jobs
func (w *Worker) Stop() {
	close(w.quit)
	w.wg.Wait()
	log.Printf("Workers stopped for %v", w.jobTypes)
}

// process pulls and dispatches jobs until stopped
func (w *Worker) process(workerID int) {
	defer w.wg.Done()

	ctx := context.Background()
	for {
		select {
		case <-w.quit:
			return
		default:
			job, err := w.queue.Dequeue(ctx, 1*time.Second, w.jobTypes...)
			if err != nil {
				log.Printf("Worker %d: error dequeueing job: %v", workerID, err)
				time.Sleep(1 * time.Second)
				continue
			}
			if job == nil {
				continue
			}
			w.dispatch(ctx, workerID, job)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, workerID int, job *Job) {
	handler, ok := w.queue.Handler(job.Type)
	if !ok {
		log.Printf("Worker %d: no handler for job type %s", workerID, job.Type)
		if err := w.queue.Fail(ctx, job, errNoHandler(job.Type)); err != nil {
			log.Printf("Worker %d: error failing job %s: %v", workerID, job.ID, err)
		}
		return
	}

	if err := handler(ctx, *job); err != nil {
		log.Printf("Worker %d: job %s (%s) failed: %v", workerID, job.ID, job.Type, err)
		if ferr := w.queue.Fail(ctx, job, err); ferr != nil {
			log.Printf("Worker %d: error recording failure for job %s: %v", workerID, job.ID, ferr)
		}
		return
	}
	if err := w.queue.Complete(ctx, job); err != nil {
		log.Printf("Worker %d: error completing job %s: %v", workerID, job.ID, err)
	}
}

type errNoHandler JobType

func (e errNoHandler) Error() string {
	return "no handler registered for job type " + string(e)
}
