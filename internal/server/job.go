package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/pipeline"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	// JobRunning means the batch is still being processed.
	JobRunning JobState = "running"

	// JobDone means every URL was processed.
	JobDone JobState = "done"

	// JobCancelled means the user or a shutdown stopped the batch.
	JobCancelled JobState = "cancelled"

	// JobFailed means the batch could not run.
	JobFailed JobState = "failed"
)

// Job is one batch started from the web front-end.
type Job struct {
	ID        string
	CreatedAt time.Time
	FileName  string
	URLs      []string
	Fields    []string

	model           string
	pricePerMillion float64

	mu         sync.Mutex
	state      JobState
	processed  int
	tokens     int
	current    string
	batch      *model.Batch
	err        error
	finishedAt time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	ID             string    `json:"id"`
	State          JobState  `json:"state"`
	FileName       string    `json:"file_name,omitempty"`
	Total          int       `json:"total"`
	Processed      int       `json:"processed"`
	Percent        int       `json:"percent"`
	Current        string    `json:"current,omitempty"`
	TotalTokens    int       `json:"total_tokens"`
	EstimatedCost  float64   `json:"estimated_cost_usd"`
	ElapsedMinutes float64   `json:"elapsed_minutes"`
	CreatedAt      time.Time `json:"created_at"`
	Error          string    `json:"error,omitempty"`
}

func newJob(fileName string, urls, fields []string, modelName string, pricePerMillion float64) *Job {
	return &Job{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		FileName:        fileName,
		URLs:            urls,
		Fields:          fields,
		model:           modelName,
		pricePerMillion: pricePerMillion,
		state:           JobRunning,
		done:            make(chan struct{}),
	}
}

// handleEvent applies a progress event.
func (j *Job) handleEvent(e pipeline.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.processed = e.Processed
	j.tokens = e.TotalTokens
	if e.Kind == pipeline.EventStarted {
		j.current = e.Status()
	}
}

// finish stores the outcome of the batch and releases waiters.
func (j *Job) finish(batch *model.Batch, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.batch = batch
	j.err = err
	j.finishedAt = time.Now()
	j.current = ""
	if batch != nil {
		j.processed = len(batch.Results)
		j.tokens = batch.TotalTokens()
	}

	switch {
	case err == nil:
		j.state = JobDone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		j.state = JobCancelled
	default:
		j.state = JobFailed
	}
	close(j.done)
}

// Cancel stops a running job. It is a no-op for a finished job.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the job is over.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Running reports whether the job is still being processed.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state == JobRunning
}

// Batch returns the finished batch, or nil while the job is running.
func (j *Job) Batch() *model.Batch {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.batch
}

// Status returns a snapshot of the job.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	end := time.Now()
	if !j.finishedAt.IsZero() {
		end = j.finishedAt
	}

	s := JobStatus{
		ID:             j.ID,
		State:          j.state,
		FileName:       j.FileName,
		Total:          len(j.URLs),
		Processed:      j.processed,
		Percent:        model.ProgressPercent(j.processed, len(j.URLs)),
		Current:        j.current,
		TotalTokens:    j.tokens,
		EstimatedCost:  model.EstimateCost(j.tokens, j.pricePerMillion),
		ElapsedMinutes: end.Sub(j.CreatedAt).Minutes(),
		CreatedAt:      j.CreatedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

// Store keeps jobs in memory.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Add stores a job.
func (s *Store) Add(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// Get returns the job with the given ID.
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// List returns every job, newest first.
func (s *Store) List() []*Job {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	return jobs
}

// CancelAll stops every running job.
func (s *Store) CancelAll() {
	for _, j := range s.List() {
		j.Cancel()
	}
}
