package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
	JobEventResult   JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For progress (optional fields)
	Processed int `json:"processed,omitempty"`
	Total     int `json:"total,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

type Job struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"` // "analyze"
	BuildFrom string        `json:"build_from"`
	BuildTo   string        `json:"build_to"`
	Component string        `json:"component"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Events    chan JobEvent `json:"-"`

	// Optional result:
	Result *AnalysisResult `json:"result,omitempty"`
}

// ErrOrchestratorClosed is returned when a job is submitted after Close.
var ErrOrchestratorClosed = errors.New("orchestrator is closed")

func (o *Orchestrator) ensureJobMaps() {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.jobs == nil {
		o.jobs = make(map[string]*Job)
	}
	if o.jobCancels == nil {
		o.jobCancels = make(map[string]context.CancelFunc)
	}
}

func (o *Orchestrator) newJob(buildFrom, buildTo, component string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Type:      "analyze",
		BuildFrom: buildFrom,
		BuildTo:   buildTo,
		Component: component,
		Status:    JobPending,
		StartedAt: time.Now().UTC(),
		Events:    make(chan JobEvent, 16),
	}
}

func (o *Orchestrator) emitJobEvent(jobID string, ev JobEvent) {
	o.jobsMu.Lock()
	job, ok := o.jobs[jobID]
	o.jobsMu.Unlock()
	if !ok || job == nil || job.Events == nil {
		return
	}

	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}

func (o *Orchestrator) setJob(job *Job) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.jobs == nil {
		o.jobs = make(map[string]*Job)
	}
	o.jobs[job.ID] = job
}

func (o *Orchestrator) setCancel(jobID string, cancel context.CancelFunc) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.jobCancels == nil {
		o.jobCancels = make(map[string]context.CancelFunc)
	}
	o.jobCancels[jobID] = cancel
}

func (o *Orchestrator) deleteCancel(jobID string) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	delete(o.jobCancels, jobID)
}

func (o *Orchestrator) getCancel(jobID string) context.CancelFunc {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	return o.jobCancels[jobID]
}

// progressCallback returns a callback forwarding pipeline progress into the
// job's event channel.
func (o *Orchestrator) progressCallback(jobID string) func(processed, total int) {
	return func(processed, total int) {
		o.emitJobEvent(jobID, JobEvent{
			JobID:     jobID,
			Type:      JobEventProgress,
			Processed: processed,
			Total:     total,
		})
	}
}

// pruneJobs drops finished jobs older than the retention window. Caller must
// hold jobsMu.
func (o *Orchestrator) pruneJobs() {
	if o.cfg.JobRetentionTime <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-o.cfg.JobRetentionTime)
	for id, j := range o.jobs {
		if !j.EndedAt.IsZero() && j.EndedAt.Before(cutoff) {
			delete(o.jobs, id)
		}
	}
}

// StartAnalyzeJob runs AnalyzeBuilds asynchronously, streaming status and
// progress events over the returned job's channel. The channel is closed
// when the job reaches a terminal state.
func (o *Orchestrator) StartAnalyzeJob(ctx context.Context, buildFrom, buildTo, component string, enrichReports bool) (*Job, error) {
	o.ensureJobMaps()

	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		return nil, ErrOrchestratorClosed
	}
	o.pruneJobs()
	o.jobsMu.Unlock()

	job := o.newJob(buildFrom, buildTo, component)
	jobID := job.ID
	o.setJob(job)

	jobCtx, cancel := context.WithCancel(ctx)
	o.setCancel(jobID, cancel)

	// Emit initial pending event
	o.emitJobEvent(jobID, JobEvent{
		JobID:  jobID,
		Type:   JobEventStatus,
		Status: JobPending,
	})

	go func() {
		defer func() {
			o.jobsMu.Lock()
			if j, ok := o.jobs[jobID]; ok {
				j.EndedAt = time.Now().UTC()
			}
			o.jobsMu.Unlock()
			o.deleteCancel(jobID)

			// Close events channel so websocket loop can terminate cleanly
			o.jobsMu.Lock()
			j := o.jobs[jobID]
			o.jobsMu.Unlock()
			if j != nil && j.Events != nil {
				close(j.Events)
			}
		}()

		// Mark running
		o.jobsMu.Lock()
		if j, ok := o.jobs[jobID]; ok {
			j.Status = JobRunning
		}
		o.jobsMu.Unlock()
		o.emitJobEvent(jobID, JobEvent{
			JobID:  jobID,
			Type:   JobEventStatus,
			Status: JobRunning,
		})

		result, err := o.AnalyzeBuilds(jobCtx, buildFrom, buildTo, component, enrichReports, o.progressCallback(jobID))
		if err != nil {
			select {
			case <-jobCtx.Done():
				o.jobsMu.Lock()
				if j, ok := o.jobs[jobID]; ok {
					j.Status = JobCanceled
					j.Error = jobCtx.Err().Error()
				}
				o.jobsMu.Unlock()
				o.emitJobEvent(jobID, JobEvent{
					JobID:  jobID,
					Type:   JobEventStatus,
					Status: JobCanceled,
					Error:  jobCtx.Err().Error(),
				})
			default:
				o.jobsMu.Lock()
				if j, ok := o.jobs[jobID]; ok {
					j.Status = JobFailed
					j.Error = err.Error()
				}
				o.jobsMu.Unlock()
				o.emitJobEvent(jobID, JobEvent{
					JobID:  jobID,
					Type:   JobEventStatus,
					Status: JobFailed,
					Error:  err.Error(),
				})
			}
			return
		}

		select {
		case <-jobCtx.Done():
			o.jobsMu.Lock()
			if j, ok := o.jobs[jobID]; ok {
				j.Status = JobCanceled
				j.Error = jobCtx.Err().Error()
			}
			o.jobsMu.Unlock()
			o.emitJobEvent(jobID, JobEvent{
				JobID:  jobID,
				Type:   JobEventStatus,
				Status: JobCanceled,
				Error:  jobCtx.Err().Error(),
			})
		default:
			o.jobsMu.Lock()
			if j, ok := o.jobs[jobID]; ok {
				j.Status = JobDone
				j.Result = result
			}
			o.jobsMu.Unlock()
			o.emitJobEvent(jobID, JobEvent{
				JobID:  jobID,
				Type:   JobEventResult,
				Status: JobDone,
			})
		}
	}()

	return job, nil
}

func (o *Orchestrator) CancelJob(jobID string) {
	cancel := o.getCancel(jobID)
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	return j
}

// ListJobs returns all retained jobs, newest first.
func (o *Orchestrator) ListJobs() []*Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	out := make([]*Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close cancels running jobs and rejects new submissions. Safe to call more
// than once.
func (o *Orchestrator) Close() {
	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		return
	}
	o.closed = true
	cancels := make([]context.CancelFunc, 0, len(o.jobCancels))
	for _, cancel := range o.jobCancels {
		cancels = append(cancels, cancel)
	}
	o.jobsMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
