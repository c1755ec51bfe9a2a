package harness

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/loopsmith/internal/ir"
	"github.com/roach88/loopsmith/internal/rewriter"
	"github.com/roach88/loopsmith/internal/testutil"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext is what assertions are evaluated against.
type AssertionContext struct {
	// Input are the trees before rewriting.
	Input []ir.Node
	// State is the rewriter output.
	State rewriter.State
	// Dump renders State.
	Dump string
	// Env binds runtime sizes.
	Env ir.Point
}

// outputEnv adds the runtime parameters the rewrite introduced.
func (a *AssertionContext) outputEnv() ir.Point {
	env := ir.Point{}
	maps.Copy(env, a.Env)
	maps.Copy(env, rewriter.Env(a.State.Arguments))
	return env
}

// EvaluateAssertions checks every assertion and returns the failures.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	for _, assertion := range assertions {
		if err := evaluate(assertion, actx); err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertApplied:
		return assertApplied(actx.State, a)
	case AssertAppliedContains:
		return assertAppliedContains(actx.State, a, true)
	case AssertNotApplied:
		return assertAppliedContains(actx.State, a, false)
	case AssertArguments:
		return assertArguments(actx.State, a)
	case AssertDumpContains, AssertDumpExcludes:
		return assertDump(actx.Dump, a)
	case AssertNodeCount:
		return assertNodeCount(actx.State, a)
	case AssertCallables:
		if got := len(actx.State.ElementalFunctions); got != *a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d elemental functions", *a.Count),
				Actual:   fmt.Sprintf("%d", got),
			}
		}
		return nil
	case AssertCoverage:
		return assertCoverage(actx)
	case AssertEquivalence:
		return assertEquivalence(actx)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertApplied checks the exact flag sequence.
func assertApplied(s rewriter.State, a Assertion) error {
	got := s.AppliedNames()
	if !slices.Equal(got, a.Flags) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("flags %v", a.Flags),
			Actual:   fmt.Sprintf("flags %v", got),
		}
	}
	return nil
}

// assertAppliedContains checks presence (want=true) or absence of flags.
func assertAppliedContains(s rewriter.State, a Assertion, want bool) error {
	for _, f := range a.Flags {
		if s.HasApplied(rewriter.Flag(f)) != want {
			verb := "applied"
			if !want {
				verb = "not applied"
			}
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s %s", f, verb),
				Actual:   fmt.Sprintf("flags %v", s.AppliedNames()),
			}
		}
	}
	return nil
}

func assertArguments(s rewriter.State, a Assertion) error {
	names := make([]string, len(s.Arguments))
	for i, arg := range s.Arguments {
		names[i] = arg.Name()
	}
	if a.Count != nil && len(names) != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d runtime parameters", *a.Count),
			Actual:   fmt.Sprintf("%d: %v", len(names), names),
		}
	}
	if a.Names != nil && !slices.Equal(names, a.Names) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("parameters %v", a.Names),
			Actual:   fmt.Sprintf("parameters %v", names),
		}
	}
	sizes := rewriter.Env(s.Arguments)
	for _, name := range slices.Sorted(maps.Keys(a.Sizes)) {
		got, ok := sizes[name]
		if !ok || got != a.Sizes[name] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s = %d", name, a.Sizes[name]),
				Actual:   fmt.Sprintf("sizes %v", sizes),
			}
		}
	}
	return nil
}

func assertDump(dump string, a Assertion) error {
	found := strings.Contains(dump, a.Text)
	if found == (a.Type == AssertDumpContains) {
		return nil
	}
	expected := fmt.Sprintf("dump contains %q", a.Text)
	if a.Type == AssertDumpExcludes {
		expected = fmt.Sprintf("dump does not contain %q", a.Text)
	}
	return &AssertionError{Type: a.Type, Expected: expected, Actual: "dump:\n" + dump}
}

// assertNodeCount counts nodes in the trees and the elemental functions.
func assertNodeCount(s rewriter.State, a Assertion) error {
	all := append([]ir.Node{}, s.Nodes...)
	for _, c := range s.ElementalFunctions {
		all = append(all, c)
	}

	var got int
	switch a.Node {
	case "iteration":
		got = len(ir.FindNodes[*ir.Iteration](all))
	case "expression":
		got = len(ir.FindNodes[*ir.Expression](all))
	case "block":
		got = len(ir.FindNodes[*ir.Block](all))
	case "call":
		got = len(ir.FindNodes[*ir.Call](all))
	case "fold":
		got = len(ir.FindNodes[*ir.Fold](all))
	}
	if got != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s nodes", *a.Count, a.Node),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertCoverage compares how often each written point is written.
func assertCoverage(actx *AssertionContext) error {
	want, err := testutil.Visits(actx.Input, nil, actx.Env)
	if err != nil {
		return &AssertionError{Type: AssertCoverage, Expected: "input enumerates", Actual: err.Error()}
	}
	got, err := testutil.Visits(actx.State.Nodes, actx.State.ElementalFunctions, actx.outputEnv())
	if err != nil {
		return &AssertionError{Type: AssertCoverage, Expected: "output enumerates", Actual: err.Error()}
	}

	keys := slices.Sorted(maps.Keys(want))
	for k := range got {
		if _, ok := want[k]; !ok {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		if want[k] != got[k] {
			return &AssertionError{
				Type:     AssertCoverage,
				Expected: fmt.Sprintf("%s written %d times", k, want[k]),
				Actual:   fmt.Sprintf("written %d times", got[k]),
			}
		}
	}
	return nil
}

// assertEquivalence interprets input and output over the same initial
// arrays and compares every external array the kernel writes.
func assertEquivalence(actx *AssertionContext) error {
	in, out := testutil.Memory{}, testutil.Memory{}
	for _, f := range ir.FindFunctions(actx.Input) {
		if !f.IsArray() {
			continue
		}
		if len(f.Shape) != f.Rank() || slices.Contains(f.Shape, 0) {
			return &AssertionError{
				Type:     AssertEquivalence,
				Expected: fmt.Sprintf("static shape for %s", f.Name),
				Actual:   fmt.Sprintf("shape %v", f.Shape),
			}
		}
		gen := seed(f.Name)
		in.Fill(f, gen)
		out.Fill(f, gen)
	}

	if err := testutil.Execute(actx.Input, nil, actx.Env, in); err != nil {
		return &AssertionError{Type: AssertEquivalence, Expected: "input executes", Actual: err.Error()}
	}
	if err := testutil.Execute(actx.State.Nodes, actx.State.ElementalFunctions, actx.outputEnv(), out); err != nil {
		return &AssertionError{Type: AssertEquivalence, Expected: "output executes", Actual: err.Error()}
	}

	for _, f := range ir.FindWrites(actx.Input) {
		if !f.External {
			continue
		}
		want, got := in.Snapshot(f.Name), out.Snapshot(f.Name)
		keys := slices.Collect(maps.Keys(want))
		sort.Strings(keys)
		for _, k := range keys {
			if want[k] != got[k] {
				return &AssertionError{
					Type:     AssertEquivalence,
					Expected: fmt.Sprintf("%s%s = %v", f.Name, k, want[k]),
					Actual:   fmt.Sprintf("%v", got[k]),
				}
			}
		}
	}
	return nil
}

// seed returns a deterministic initializer distinct per array.
func seed(name string) func([]int) float64 {
	base := 0
	for _, r := range name {
		base = base*31 + int(r)
	}
	return func(c []int) float64 {
		v := base % 17
		for i, x := range c {
			v = v*7 + (i+1)*(x+3)
		}
		return float64(v%101) / 4
	}
}
