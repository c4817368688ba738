// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator sequences firmware build and flash jobs: it serializes
// jobs per target, drives each through source preparation and supervised tool
// execution, streams captured output to subscribers, and reduces the outcome
// to one structured result.
package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/google/boardsmith/internal/eventq"
	"github.com/google/boardsmith/internal/syncx"
	"github.com/google/boardsmith/internal/tailbuf"
	"github.com/google/boardsmith/pkg/classify"
	"github.com/google/boardsmith/pkg/process"
	"github.com/google/boardsmith/pkg/source"
	"github.com/google/boardsmith/pkg/toolchain"
)

// DuplicateTargetError reports a submission for a target that already has an
// active job.
type DuplicateTargetError struct {
	Target string
	// JobID identifies the active job holding the target.
	JobID string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("target %s is busy with job %s", e.Target, e.JobID)
}

var (
	// ErrUnknownJob reports an operation on a job ID that is not tracked,
	// either because it never existed or because it was released.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobActive reports a release attempted before the job terminated.
	ErrJobActive = errors.New("job has not reached a terminal state")
)

// Config carries the orchestrator's injected dependencies and tuning.
type Config struct {
	Resolver   toolchain.Resolver
	Source     source.Provider
	Supervisor process.Supervisor
	// BuildRules and FlashRules classify non-zero stage exits. Zero-value
	// tables are replaced with the compiled-in defaults.
	BuildRules classify.Table
	FlashRules classify.Table
	// History bounds the recent events replayed to late subscribers.
	// Defaults to 256.
	History int
	// SubscriberQueue bounds each subscriber's pending events; the oldest
	// entry is discarded on overflow. Defaults to 1024.
	SubscriberQueue int
}

// Orchestrator accepts and tracks jobs. Construct with New; the zero value
// is not usable.
type Orchestrator struct {
	cfg     Config
	targets syncx.ComparableMap[string, *Job]
	jobs    syncx.Map[string, *Job]
}

// New returns an Orchestrator using cfg, filling in defaulted fields.
func New(cfg Config) *Orchestrator {
	if cfg.Resolver == nil {
		cfg.Resolver = toolchain.HostResolver{}
	}
	if cfg.Source == nil {
		cfg.Source = source.NewGitProvider()
	}
	if cfg.Supervisor == nil {
		cfg.Supervisor = process.NewLocal()
	}
	if len(cfg.BuildRules.Rules) == 0 && cfg.BuildRules.Fallback == "" {
		cfg.BuildRules = classify.DefaultBuildTable()
	}
	if len(cfg.FlashRules.Rules) == 0 && cfg.FlashRules.Fallback == "" {
		cfg.FlashRules = classify.DefaultFlashTable()
	}
	if cfg.History <= 0 {
		cfg.History = 256
	}
	if cfg.SubscriberQueue <= 0 {
		cfg.SubscriberQueue = 1024
	}
	return &Orchestrator{cfg: cfg}
}

// Submit accepts req and starts its job. The per-target slot is claimed
// synchronously: a second submission for a target whose job has not been
// released fails with *DuplicateTargetError. Cancelling ctx cancels the job.
func (o *Orchestrator) Submit(ctx context.Context, req JobRequest) (*Job, error) {
	if req.Target == "" {
		return nil, errors.New("request has no target")
	}
	if req.Profile.Build.Tool == "" {
		return nil, errors.New("request has no build command")
	}
	if req.Flash && req.Profile.Flash.Tool == "" {
		return nil, errors.Errorf("target %s has no flash command", req.Target)
	}
	jctx, cancel := context.WithCancel(ctx)
	j := &Job{
		ID:     uuid.New().String(),
		req:    req,
		o:      o,
		ctx:    jctx,
		cancel: cancel,
		tail:   tailbuf.New(50),
		subs:   map[int]*eventq.Queue[Event]{},
		done:   make(chan struct{}),
	}
	if holder, loaded := o.targets.LoadOrStore(req.Target, j); loaded {
		cancel()
		return nil, &DuplicateTargetError{Target: req.Target, JobID: holder.ID}
	}
	o.jobs.Store(j.ID, j)
	log.Printf("[%s] job %s accepted (revision %q, flash=%t)", req.Target, j.ID, req.Revision, req.Flash)
	go j.run()
	return j, nil
}

// Job returns the tracked job with the given ID.
func (o *Orchestrator) Job(jobID string) (*Job, error) {
	j, ok := o.jobs.Load(jobID)
	if !ok {
		return nil, errors.Wrap(ErrUnknownJob, jobID)
	}
	return j, nil
}

// Subscribe attaches a listener to the job's event stream. See Job.Subscribe.
func (o *Orchestrator) Subscribe(jobID string) (<-chan Event, func(), error) {
	j, err := o.Job(jobID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := j.Subscribe()
	return ch, cancel, nil
}

// Result awaits the job's terminal result.
func (o *Orchestrator) Result(ctx context.Context, jobID string) (Result, error) {
	j, err := o.Job(jobID)
	if err != nil {
		return Result{}, err
	}
	return j.Result(ctx)
}

// Cancel requests cancellation of the job. See Job.Cancel.
func (o *Orchestrator) Cancel(jobID string) error {
	j, err := o.Job(jobID)
	if err != nil {
		return err
	}
	j.Cancel()
	return nil
}

// Release frees a terminated job's per-target slot, permitting a new
// submission for that target, and stops tracking the job. Releasing a job
// that has not terminated fails with ErrJobActive.
func (o *Orchestrator) Release(jobID string) error {
	j, ok := o.jobs.Load(jobID)
	if !ok {
		return errors.Wrap(ErrUnknownJob, jobID)
	}
	if !j.State().Terminal() {
		return errors.Wrapf(ErrJobActive, "job %s is %s", jobID, j.State())
	}
	if _, loaded := o.jobs.LoadAndDelete(jobID); !loaded {
		// A concurrent release won.
		return errors.Wrap(ErrUnknownJob, jobID)
	}
	o.targets.CompareAndDelete(j.req.Target, j)
	log.Printf("[%s] job %s released", j.req.Target, jobID)
	return nil
}

// Release frees the job via its orchestrator. See Orchestrator.Release.
func (j *Job) Release() error {
	return j.o.Release(j.ID)
}
