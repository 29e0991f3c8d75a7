package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/reactest/internal/compiler"
	"github.com/roach88/reactest/internal/ir"
	"github.com/roach88/reactest/internal/reactive"
	"github.com/roach88/reactest/internal/testutil"
)

// Harness executes one scenario against one isolated session.
type Harness struct {
	session *reactive.Session
	seq     *testutil.Sequence
	result  *Result
	logger  *slog.Logger

	step      int  // index of the step being executed
	recording bool // false once assertions start reading the session
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger routes harness and session logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Load the scenario's CUE spec and select its app
//  2. Compile the app into a reactive definition
//  3. Build a fresh session and execute the steps
//  4. Evaluate assertions and compute the trace digest
//
// The returned error covers problems running the scenario at all (missing
// spec, compile failure). Failed expectations are reported in Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	apps, err := compiler.LoadFile(scenario.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load spec: %w", err)
	}
	app, err := compiler.FindApp(apps, scenario.App)
	if err != nil {
		return nil, fmt.Errorf("failed to select app: %w", err)
	}
	def, err := app.Definition()
	if err != nil {
		return nil, fmt.Errorf("failed to compile app %s: %w", app.Name, err)
	}
	return RunDefinition(scenario, def, opts...)
}

// RunDefinition executes scenario against a definition built in Go rather
// than loaded from the scenario's spec file.
func RunDefinition(scenario *Scenario, def reactive.Definition, opts ...Option) (*Result, error) {
	h := &Harness{
		seq:       testutil.NewSequence(),
		result:    NewResult(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		step:      -1,
		recording: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("scenario", scenario.Name)

	session, err := reactive.New(def,
		reactive.WithLogger(h.logger),
		reactive.WithObserver(h.observe),
	)
	if scenario.ExpectBuildError != "" {
		h.checkBuildError(scenario.ExpectBuildError, err)
		if session != nil {
			_ = session.Close()
		}
		return h.finish(scenario.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}
	h.session = session
	defer session.Close()

	for i, step := range scenario.Steps {
		h.step = i
		h.execute(step)
	}

	h.recording = false
	actx := &AssertionContext{Session: session, Trace: h.result.Trace}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.finish(scenario.Name)
}

func (h *Harness) finish(name string) (*Result, error) {
	digest, err := Digest(name, h.result.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to digest trace: %w", err)
	}
	h.result.Digest = digest
	h.logger.Debug("scenario finished", "pass", h.result.Pass, "events", len(h.result.Trace))
	return h.result, nil
}

func (h *Harness) checkBuildError(want string, err error) {
	if err == nil {
		h.result.AddError(fmt.Sprintf("session build: expected error %s, got none", want))
		return
	}
	got := string(reactive.CodeOf(err))
	h.record(TraceEvent{Kind: EventError, Code: got})
	if got != want {
		h.result.AddError(fmt.Sprintf("session build: expected error %s, got %v", want, err))
	}
}

// observe records session events while steps run.
func (h *Harness) observe(e reactive.Event) {
	if !h.recording {
		return
	}
	event := TraceEvent{Kind: string(e.Kind), Node: e.Node, At: e.At, Value: e.Value}
	if e.Kind == reactive.EventRecompute && e.Rendered != "" {
		event.Value = e.Rendered
	}
	h.record(event)
}

func (h *Harness) record(event TraceEvent) {
	event.Seq = h.seq.Next()
	event.Step = h.step
	if h.session != nil && event.At == 0 {
		event.At = h.session.Now()
	}
	h.result.Trace = append(h.result.Trace, event)
}

// execute runs one step. Failures are added to the result; execution
// continues with the next step.
func (h *Harness) execute(step Step) {
	kind := step.Kind()
	prefix := fmt.Sprintf("step %d (%s)", h.step+1, kind)

	var (
		got any
		err error
	)
	switch kind {
	case StepSet:
		err = h.set(step.Set)
	case StepElapse:
		err = h.elapse(step)
	case StepRead:
		got, err = h.session.Read(step.Read)
	case StepOutput:
		got, err = h.session.ReadOutput(step.Output)
	case StepDirty:
		got, err = h.session.Dirty(step.Dirty)
	default:
		h.result.AddError(prefix + ": step has no single action")
		return
	}

	if err != nil {
		code := string(reactive.CodeOf(err))
		h.record(TraceEvent{Kind: EventError, Node: step.Target(), Code: code})
		switch {
		case step.ExpectError == "":
			h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, err))
		case code != step.ExpectError:
			h.result.AddError(fmt.Sprintf("%s: expected error %s, got %v", prefix, step.ExpectError, err))
		}
		return
	}
	if step.ExpectError != "" {
		h.result.AddError(fmt.Sprintf("%s: expected error %s, got none", prefix, step.ExpectError))
	}

	if kind == StepSet || kind == StepElapse {
		return
	}
	h.record(TraceEvent{Kind: kind, Node: step.Target(), Value: got})

	if step.Expect != nil && !ir.EqualGo(step.Expect.Value, got) {
		h.result.AddError(fmt.Sprintf("%s %s: value mismatch (-want +got):\n%s",
			prefix, step.Target(), cmp.Diff(step.Expect.Value, got)))
	}
}

func (h *Harness) set(values map[string]any) error {
	batch := make(map[string]any, len(values))
	for name, v := range values {
		norm, err := ir.Normalize(v)
		if err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		batch[name] = norm
	}
	return h.session.SetInputs(batch)
}

func (h *Harness) elapse(step Step) error {
	d, err := step.ElapseDuration()
	if err != nil {
		return err
	}
	if err := h.session.Elapse(d); err != nil {
		return err
	}
	h.record(TraceEvent{Kind: EventElapse, Value: d.String()})
	return nil
}
