// Package harness runs declarative scenarios against reactive sessions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: calc_basic
//	description: "What this scenario validates"
//	spec: ../../compiler/testdata/calc.cue
//	app: calc
//	steps:
//	  - set: { x: 10, y: 4, z: 1 }
//	  - read: xyz
//	    expect: 30
//	  - output: out
//	    expect: "Result: 30"
//	  - elapse: 300ms
//	  - dirty: tick
//	    expect: true
//	  - read: missing
//	    expect_error: UNKNOWN_NODE
//	assertions:
//	  - type: recompute_count
//	    node: xy
//	    count: 1
//	  - type: recompute_order
//	    nodes: [xy, yz, xyz]
//	  - type: fire_count
//	    node: tick
//	    count: 1
//	  - type: final_value
//	    node: out
//	    expect: "Result: 30"
//
// A scenario that only checks that construction fails sets
// expect_build_error (e.g. GRAPH_CYCLE) and has no steps.
//
// # Deterministic Testing
//
// Every run builds a fresh session with its own virtual clock, and numbers
// trace events from a fresh sequence, so the same scenario always produces
// the same trace. Traces serialize to canonical JSON; the golden files under
// testdata/golden and the trace digest are both taken from that form.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/calc.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
//
// Go tests that build graphs in code use NewTestSession instead.
package harness
