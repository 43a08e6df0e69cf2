// Package batch runs many pdfpulse jobs on a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/Thekiidd/pdfpulse"
)

// DefaultWorkers is the pool size used when Runner.Workers is not positive.
const DefaultWorkers = 4

// Task is one job in a batch.
type Task struct {
	// Name identifies the task in logs and results. A random id is assigned
	// when it is empty.
	Name string
	Job  *pdfpulse.Job
}

// Outcome is what one task produced. Exactly one of Result and Err is set.
type Outcome struct {
	Name     string
	Result   *pdfpulse.Result
	Err      error
	Duration time.Duration
}

// Runner executes tasks concurrently.
type Runner struct {
	Workers int
	Logger  logrus.FieldLogger
}

// Run executes every task and returns the outcomes in task order. A failed
// task does not stop the others; the returned error is only set when the
// pool cannot be created.
func (r *Runner) Run(ctx context.Context, tasks []Task) ([]Outcome, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := r.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]Outcome, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		name := task.Name
		if name == "" {
			name = uuid.NewString()
		}
		outcomes[i].Name = name

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = runTask(ctx, name, task.Job, log)
		})
		if err != nil {
			wg.Done()
			outcomes[i].Err = fmt.Errorf("submitting task: %w", err)
		}
	}
	wg.Wait()
	return outcomes, nil
}

func runTask(ctx context.Context, name string, job *pdfpulse.Job, log logrus.FieldLogger) Outcome {
	out := Outcome{Name: name}
	if job == nil {
		out.Err = errors.New("task has no job")
		return out
	}
	entry := log.WithFields(logrus.Fields{"task": name, "operation": job.Operation()})

	start := time.Now()
	res, err := job.Logger(entry).Run(ctx)
	out.Duration = time.Since(start)
	if err != nil {
		entry.WithError(err).Warn("task failed")
		out.Err = err
		return out
	}
	out.Result = res
	entry.WithField("duration", out.Duration).Debug("task finished")
	return out
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
