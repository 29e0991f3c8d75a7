package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/reactest/internal/ir"
)

// MarshalTrace renders a trace as canonical JSON: the form stored in golden
// files and fed to the trace digest.
func MarshalTrace(scenarioName string, trace []TraceEvent) ([]byte, error) {
	events := make([]any, len(trace))
	for i, event := range trace {
		m := map[string]any{
			"seq":  event.Seq,
			"step": event.Step,
			"kind": event.Kind,
			"at":   event.At.String(),
		}
		if event.Node != "" {
			m["node"] = event.Node
		}
		if event.HasValue() {
			m["value"] = event.Value
		}
		if event.Code != "" {
			m["code"] = event.Code
		}
		events[i] = m
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"trace":    events,
	})
}

// Digest computes the trace digest for a scenario run.
func Digest(scenarioName string, trace []TraceEvent) (string, error) {
	canonical, err := MarshalTrace(scenarioName, trace)
	if err != nil {
		return "", err
	}
	return ir.TraceDigest(scenarioName, canonical), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
