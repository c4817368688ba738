// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/google/boardsmith/internal/eventq"
	"github.com/google/boardsmith/internal/tailbuf"
	"github.com/google/boardsmith/pkg/classify"
	"github.com/google/boardsmith/pkg/process"
	"github.com/google/boardsmith/pkg/source"
	"github.com/google/boardsmith/pkg/toolchain"
)

// State is the lifecycle position of a job.
type State int

const (
	Pending State = iota
	ResolvingEnvironment
	PreparingSource
	Building
	Flashing
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case ResolvingEnvironment:
		return "resolving_environment"
	case PreparingSource:
		return "preparing_source"
	case Building:
		return "building"
	case Flashing:
		return "flashing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// EventKind discriminates subscriber events.
type EventKind int

const (
	// EventLine carries one captured line of tool output.
	EventLine EventKind = iota
	// EventState marks a lifecycle transition.
	EventState
	// EventOverflow reports that the subscriber's bounded queue discarded
	// events; Dropped counts them. Overflow markers are synthesized per
	// subscriber at delivery time and share the sequence number of the
	// first event after the gap.
	EventOverflow
)

// Event is one entry of a job's output stream. Seq is job-level and strictly
// increasing across stages and marker events, so a listener observes one
// monotonic sequence for the whole job.
type Event struct {
	Seq  uint64
	Kind EventKind
	// State is the stage that produced a line, or the state entered.
	State State
	// Stream and Text are set for EventLine.
	Stream process.StreamID
	Text   string
	// Dropped is set for EventOverflow.
	Dropped uint64
}

// Result is the terminal record of a finished job.
type Result struct {
	Success bool
	// ErrorType is empty exactly when Success is true.
	ErrorType classify.Category
	// Message holds the most meaningful captured diagnostic line.
	Message string
	// ArtifactPath is set once a build stage produced an artifact, whether
	// or not the job as a whole succeeded.
	ArtifactPath string
}

// Job tracks one submitted request from acceptance to release.
type Job struct {
	// ID uniquely identifies the job.
	ID  string
	req JobRequest
	o   *Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
	tail   *tailbuf.Buffer

	mu       sync.Mutex
	state    State
	result   Result
	artifact string
	proc     process.Handle
	seq      uint64
	history  []Event
	subs     map[int]*eventq.Queue[Event]
	nextSub  int
	done     chan struct{}
}

// Request returns the descriptor the job was submitted with.
func (j *Job) Request() JobRequest { return j.req }

// State returns the job's current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Result blocks until the job reaches a terminal state or ctx is done.
func (j *Job) Result(ctx context.Context) (Result, error) {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel moves the job to its terminal Cancelled state immediately and asks
// the active process, if any, to terminate. Safe to call multiple times and
// after termination, where it has no effect.
func (j *Job) Cancel() {
	finished := j.finish(Cancelled, Result{ErrorType: classify.Cancelled, Message: "job cancelled"})
	j.cancel()
	j.mu.Lock()
	h := j.proc
	j.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
	if finished {
		log.Printf("[%s] job %s cancelled", j.req.Target, j.ID)
	}
}

// Subscribe returns a live view of the job's event stream plus a stop
// function. The subscriber first receives the retained tail of recent events
// and then the live feed; the channel closes once the job is terminal and
// the retained events are delivered. A slow subscriber never stalls the job:
// its queue discards oldest events and reports the gap with an EventOverflow
// marker.
func (j *Job) Subscribe() (<-chan Event, func()) {
	q := eventq.New[Event](j.o.cfg.SubscriberQueue)
	j.mu.Lock()
	for _, ev := range j.history {
		q.Push(ev)
	}
	var id int
	terminal := j.state.Terminal()
	if !terminal {
		id = j.nextSub
		j.nextSub++
		j.subs[id] = q
	}
	j.mu.Unlock()
	if terminal {
		q.Close()
	}

	out := make(chan Event)
	stop := make(chan struct{})
	var stopOnce sync.Once
	go func() {
		defer close(out)
		for {
			ev, dropped, ok := q.Pop()
			if dropped > 0 {
				marker := Event{Seq: ev.Seq, Kind: EventOverflow, Dropped: dropped}
				select {
				case out <- marker:
				case <-stop:
					return
				}
			}
			if !ok {
				return
			}
			select {
			case out <- ev:
			case <-stop:
				return
			}
		}
	}()
	cancel := func() {
		stopOnce.Do(func() {
			if !terminal {
				j.mu.Lock()
				delete(j.subs, id)
				j.mu.Unlock()
			}
			q.Close()
			close(stop)
		})
	}
	return out, cancel
}

// publishLocked stamps ev with the next job-level sequence number, appends
// it to the bounded history, and fans it out. Caller holds j.mu.
func (j *Job) publishLocked(ev Event) {
	j.seq++
	ev.Seq = j.seq
	j.history = append(j.history, ev)
	if len(j.history) > j.o.cfg.History {
		j.history = j.history[1:]
	}
	for _, q := range j.subs {
		q.Push(ev)
	}
}

// publish fans ev out to subscribers. Events arriving after the job
// terminated, such as output drained from a cancelled process, are dropped.
func (j *Job) publish(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.publishLocked(ev)
}

// setState advances the job unless it already terminated. Reports whether
// the transition happened.
func (j *Job) setState(s State) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = s
	j.publishLocked(Event{Kind: EventState, State: s})
	return true
}

// finish records the terminal state and result exactly once. Later finish
// calls, including late process exits after cancellation, are ignored.
func (j *Job) finish(s State, r Result) bool {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return false
	}
	if r.ArtifactPath == "" {
		r.ArtifactPath = j.artifact
	}
	j.state = s
	j.result = r
	j.publishLocked(Event{Kind: EventState, State: s})
	subs := j.subs
	j.subs = map[int]*eventq.Queue[Event]{}
	j.mu.Unlock()
	for _, q := range subs {
		q.Close()
	}
	close(j.done)
	return true
}

func (j *Job) fail(c classify.Category, message string) {
	if j.finish(Failed, Result{ErrorType: c, Message: message}) {
		log.Printf("[%s] job %s failed: %s: %s", j.req.Target, j.ID, c, message)
	}
}

func (j *Job) succeed() {
	if j.finish(Succeeded, Result{Success: true}) {
		log.Printf("[%s] job %s succeeded", j.req.Target, j.ID)
	}
}

// run drives the job through its stages. It is the only goroutine that
// advances non-terminal state; Cancel may preempt it at any point by
// installing the terminal state first.
func (j *Job) run() {
	if !j.setState(ResolvingEnvironment) {
		return
	}
	env := j.o.cfg.Resolver.Resolve(j.req.Platform, j.req.DepsRoot)
	dest := filepath.Join(env.SourceRoot, sanitizeTarget(j.req.Target))

	if !j.setState(PreparingSource) {
		return
	}
	src, err := j.o.cfg.Source.Prepare(j.ctx, j.req.Repo, j.req.Revision, dest, env)
	if err != nil {
		if j.ctx.Err() != nil {
			j.Cancel()
			return
		}
		j.fail(sourceCategory(err), err.Error())
		return
	}

	if !j.setState(Building) {
		return
	}
	exit, serr := j.runStage(env, j.req.Profile.Build, src, Building)
	if serr != nil {
		j.fail(serr.category, serr.message)
		return
	}
	if exit.Cancelled {
		j.Cancel()
		return
	}
	if exit.Code != 0 {
		f := j.o.cfg.BuildRules.Classify(exit.Code, j.tail.Join())
		j.fail(f.Category, j.message(f, fmt.Sprintf("build exited with code %d", exit.Code)))
		return
	}
	artifact := filepath.Join(src, filepath.FromSlash(j.req.Profile.Artifact))
	if _, err := os.Stat(artifact); err != nil {
		j.fail(classify.ArtifactMissing, "build succeeded but produced no artifact at "+artifact)
		return
	}
	j.mu.Lock()
	j.artifact = artifact
	j.mu.Unlock()
	log.Printf("[%s] built artifact %s", j.req.Target, artifact)

	if !j.req.Flash {
		j.succeed()
		return
	}

	if !j.setState(Flashing) {
		return
	}
	j.tail.Reset()
	flash := j.req.Profile.Flash
	flash.Args = ExpandArgs(flash.Args, map[string]string{
		"device":   j.req.Device,
		"artifact": artifact,
		"source":   src,
	})
	exit, serr = j.runStage(env, flash, src, Flashing)
	if serr != nil {
		j.fail(serr.category, serr.message)
		return
	}
	if exit.Cancelled {
		j.Cancel()
		return
	}
	if exit.Code != 0 {
		f := j.o.cfg.FlashRules.Classify(exit.Code, j.tail.Join())
		j.fail(f.Category, j.message(f, fmt.Sprintf("flash exited with code %d", exit.Code)))
		return
	}
	j.succeed()
}

// stageError is a failure that prevented a stage's process from running to a
// classifiable exit.
type stageError struct {
	category classify.Category
	message  string
}

// runStage resolves and spawns one tool, relays its output, and waits for
// it. A nil stageError with Exit.Cancelled set means the process was ended
// by cancellation.
func (j *Job) runStage(env toolchain.Context, cmd CommandSpec, dir string, stage State) (process.Exit, *stageError) {
	toolPath, err := env.LookPath(cmd.Tool)
	if err != nil {
		return process.Exit{}, &stageError{classify.ToolchainMissing, cmd.Tool + " not found on the composed PATH"}
	}
	log.Printf("[%s] %s: %s %v", j.req.Target, stage, toolPath, cmd.Args)
	h, err := j.o.cfg.Supervisor.Spawn(j.ctx, process.Command{
		Path: toolPath,
		Args: cmd.Args,
		Env:  env.Environ,
		Dir:  dir,
	})
	if err != nil {
		return process.Exit{}, &stageError{spawnCategory(err), err.Error()}
	}
	j.mu.Lock()
	j.proc = h
	cancelled := j.state.Terminal()
	j.mu.Unlock()
	if cancelled {
		// Cancel raced the spawn; tear the process down.
		h.Cancel()
	}
	defer func() {
		j.mu.Lock()
		j.proc = nil
		j.mu.Unlock()
	}()
	for ev := range h.Events() {
		j.tail.Append(ev.Text)
		j.publish(Event{Kind: EventLine, State: stage, Stream: ev.Stream, Text: ev.Text})
	}
	exit, err := h.Wait(context.Background())
	if err != nil {
		return process.Exit{}, &stageError{classify.UnknownBuildError, err.Error()}
	}
	if exit.Cancelled {
		log.Printf("[%s] %s process ended by cancellation (code %d)", j.req.Target, stage, exit.Code)
	}
	return exit, nil
}

// message prefers the line the winning rule matched, then the last captured
// diagnostic, then a generic fallback.
func (j *Job) message(f classify.Finding, fallback string) string {
	if f.Line != "" {
		return f.Line
	}
	if last := j.tail.Last(); last != "" {
		return last
	}
	return fallback
}

func sourceCategory(err error) classify.Category {
	switch {
	case errors.Is(err, source.ErrNetwork):
		return classify.SourceNetworkUnavailable
	case errors.Is(err, source.ErrRevisionNotFound):
		return classify.SourceRevisionNotFound
	default:
		return classify.SourceFilesystemError
	}
}

func spawnCategory(err error) classify.Category {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return classify.ToolchainMissing
	}
	return classify.SpawnFailed
}
