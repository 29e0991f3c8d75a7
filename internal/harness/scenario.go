package harness

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Scenario is a declarative harness test: build one app's session, run the
// steps in order, then check the assertions against the final state.
type Scenario struct {
	// Name uniquely identifies this scenario (golden file and run history key).
	Name string `yaml:"name" validate:"required"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" validate:"required"`

	// Spec is the CUE file declaring the app, relative to the scenario file.
	Spec string `yaml:"spec" validate:"required"`

	// App selects the app within Spec. Optional when Spec declares one app.
	App string `yaml:"app,omitempty"`

	// ExpectBuildError is the error code session construction must fail with,
	// e.g. GRAPH_CYCLE. Scenarios that set it have no steps.
	ExpectBuildError string `yaml:"expect_build_error,omitempty" validate:"omitempty,errcode"`

	Steps []Step `yaml:"steps" validate:"required_without=ExpectBuildError,dive"`

	Assertions []Assertion `yaml:"assertions,omitempty" validate:"dive"`
}

// Step is one action against the session. Exactly one of Set, Elapse, Read,
// Output and Dirty is given.
type Step struct {
	// Set writes inputs as one batch.
	Set map[string]any `yaml:"set,omitempty"`

	// Elapse advances the virtual clock: a Go duration ("300ms", "2s") or
	// a bare number of milliseconds.
	Elapse string `yaml:"elapse,omitempty"`

	// Read resolves a node and checks its value against Expect.
	Read string `yaml:"read,omitempty"`

	// Output resolves an output sink and checks its rendered artifact.
	Output string `yaml:"output,omitempty"`

	// Dirty checks whether a node is pending recomputation (Expect: true/false).
	Dirty string `yaml:"dirty,omitempty"`

	// Expect is the value a read, output or dirty step must produce.
	Expect *Expected `yaml:"expect,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty" validate:"omitempty,errcode"`
}

// Expected wraps a step's expected value so an explicit zero value (0, "",
// false) is distinguishable from no expectation.
type Expected struct {
	Value any
}

// Expect returns an Expected holding v.
func Expect(v any) *Expected {
	return &Expected{Value: v}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Expected) UnmarshalYAML(node *yaml.Node) error {
	return node.Decode(&e.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (e *Expected) MarshalYAML() (any, error) {
	return e.Value, nil
}

// Step kinds, as recorded in traces and error messages.
const (
	StepSet    = "set"
	StepElapse = "elapse"
	StepRead   = "read"
	StepOutput = "output"
	StepDirty  = "dirty"
)

// Kind returns which action the step performs, or "" if none or several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.Set != nil {
		kinds = append(kinds, StepSet)
	}
	if s.Elapse != "" {
		kinds = append(kinds, StepElapse)
	}
	if s.Read != "" {
		kinds = append(kinds, StepRead)
	}
	if s.Output != "" {
		kinds = append(kinds, StepOutput)
	}
	if s.Dirty != "" {
		kinds = append(kinds, StepDirty)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Target returns the node a read, output or dirty step addresses.
func (s Step) Target() string {
	switch s.Kind() {
	case StepRead:
		return s.Read
	case StepOutput:
		return s.Output
	case StepDirty:
		return s.Dirty
	default:
		return ""
	}
}

// maxMillis is the largest millisecond count a time.Duration holds.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// ElapseDuration parses Elapse.
func (s Step) ElapseDuration() (time.Duration, error) {
	if ms, err := strconv.ParseInt(s.Elapse, 10, 64); err == nil {
		if ms > maxMillis || ms < -maxMillis {
			return 0, fmt.Errorf("elapse %q: out of range", s.Elapse)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s.Elapse)
	if err != nil {
		return 0, fmt.Errorf("elapse %q: %w", s.Elapse, err)
	}
	return d, nil
}

// Assertion checks session state after all steps ran.
type Assertion struct {
	// Type is one of recompute_count, recompute_order, fire_count, final_value.
	Type string `yaml:"type" validate:"required,oneof=recompute_count recompute_order fire_count final_value"`

	// Node is the node under test (all types but recompute_order).
	Node string `yaml:"node,omitempty" validate:"required_unless=Type recompute_order"`

	// Nodes is the expected recompute order (recompute_order).
	Nodes []string `yaml:"nodes,omitempty" validate:"required_if=Type recompute_order"`

	// Count is the expected number (recompute_count, fire_count).
	Count *int `yaml:"count,omitempty" validate:"omitempty,min=0"`

	// Expect is the expected final value (final_value).
	Expect *Expected `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRecomputeCount = "recompute_count"
	AssertRecomputeOrder = "recompute_order"
	AssertFireCount      = "fire_count"
	AssertFinalValue     = "final_value"
)

// errorCodes are the codes expect_error and expect_build_error may name.
var errorCodes = map[string]bool{
	"GRAPH_CYCLE":      true,
	"UNKNOWN_INPUT":    true,
	"UNRESOLVED_INPUT": true,
	"NEGATIVE_ELAPSE":  true,
	"CLOCK_OVERFLOW":   true,
	"UNKNOWN_NODE":     true,
	"INVALID_GRAPH":    true,
	"NOT_AN_OUTPUT":    true,
	"COMPUTE_FAILED":   true,
	"REENTRANT_CALL":   true,
	"SESSION_CLOSED":   true,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("errcode", func(fl validator.FieldLevel) bool {
		return errorCodes[fl.Field().String()]
	})
	v.RegisterStructValidation(validateStep, Step{})
	v.RegisterStructValidation(validateAssertion, Assertion{})
	return v
}

func validateStep(sl validator.StructLevel) {
	step := sl.Current().Interface().(Step)

	kind := step.Kind()
	if kind == "" {
		sl.ReportError(step, "step", "Step", "one_action", "")
		return
	}
	if step.Expect != nil && (kind == StepSet || kind == StepElapse) {
		sl.ReportError(step.Expect, "expect", "Expect", "no_expect_on_"+kind, "")
	}
	if step.Expect != nil && step.ExpectError != "" {
		sl.ReportError(step.ExpectError, "expect_error", "ExpectError", "excluded_with_expect", "")
	}
	if kind == StepDirty && step.Expect != nil {
		if _, ok := step.Expect.Value.(bool); !ok {
			sl.ReportError(step.Expect, "expect", "Expect", "bool", "")
		}
	}
	if kind == StepElapse {
		if _, err := step.ElapseDuration(); err != nil {
			sl.ReportError(step.Elapse, "elapse", "Elapse", "duration", "")
		}
	}
}

func validateAssertion(sl validator.StructLevel) {
	a := sl.Current().Interface().(Assertion)

	switch a.Type {
	case AssertRecomputeCount, AssertFireCount:
		if a.Count == nil {
			sl.ReportError(a.Count, "count", "Count", "required_for_"+a.Type, "")
		}
	case AssertFinalValue:
		if a.Expect == nil {
			sl.ReportError(a.Expect, "expect", "Expect", "required_for_"+a.Type, "")
		}
	}
}

// LoadScenario reads and parses a scenario YAML file. The spec path is
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving a relative spec path against
// baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) && baseDir != "" {
		scenario.Spec = filepath.Join(baseDir, scenario.Spec)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ValidateScenario checks field constraints and that the spec file exists.
func ValidateScenario(s *Scenario) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = describeFieldError(fe)
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if _, err := os.Stat(s.Spec); err != nil {
		return fmt.Errorf("spec file not found: %s", s.Spec)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	// Namespace is "Scenario.steps[2].expect_error"; drop the type name.
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "errcode":
		return fmt.Sprintf("%s: unknown error code %q", field, fe.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s]", field, fe.Param())
	case "one_action":
		return fmt.Sprintf("%s: exactly one of set, elapse, read, output, dirty is required", field)
	case "excluded_with_expect":
		return fmt.Sprintf("%s: cannot be combined with expect", field)
	case "bool":
		return fmt.Sprintf("%s: dirty steps expect true or false", field)
	case "duration":
		return fmt.Sprintf("%s: %q is not a duration", field, fe.Value())
	}

	if what, ok := strings.CutPrefix(fe.Tag(), "required_for_"); ok {
		return fmt.Sprintf("%s is required for %s", field, what)
	}
	if kind, ok := strings.CutPrefix(fe.Tag(), "no_expect_on_"); ok {
		return fmt.Sprintf("%s: %s steps take no expect", field, kind)
	}
	return fmt.Sprintf("%s: failed %s", field, fe.Tag())
}
