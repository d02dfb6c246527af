package engine

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/mortise/pkg/assembly"
	"github.com/chazu/mortise/pkg/kernel"
)

// evalOK evaluates source and fails the test on any error.
func evalOK(t *testing.T, source string) *assembly.Assembly {
	t.Helper()
	a, evalErrs, err := newTestEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if a == nil {
		t.Fatal("expected non-nil assembly")
	}
	return a
}

// evalFail evaluates source and returns the eval errors, failing the test
// if evaluation succeeds.
func evalFail(t *testing.T, source string) []EvalError {
	t.Helper()
	a, evalErrs, err := newTestEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if a != nil {
		t.Fatal("expected evaluation to fail")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected eval errors")
	}
	return evalErrs
}

// ---------------------------------------------------------------------------
// Preprocessing
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`(part "a" :shape s)`, `(part "a" "__kw_shape" s)`},
		{`(anchor "a" "t" :rim-top)`, `(anchor "a" "t" "__kw_rim-top")`},
		{`(constrain :point-in-plane "a" "b")`, `(constrain "__kw_point-in-plane" "a" "b")`},
		{`(def x := 5)`, `(def x := 5)`},
		{`":not-a-keyword"`, `":not-a-keyword"`},
	}
	for _, c := range cases {
		got := preprocessSource(c.in)
		if got != c.want {
			t.Errorf("preprocess(%q) = %q, expected %q", c.in, got, c.want)
		}
	}
}

func TestPreprocessKebabIdentifiers(t *testing.T) {
	got := preprocessSource("(my-func some-var)")
	want := "(my_func some_var)"
	if got != want {
		t.Errorf("preprocess = %q, expected %q", got, want)
	}

	// Subtraction must survive.
	got = preprocessSource("(- 5 3)")
	if got != "(- 5 3)" {
		t.Errorf("minus operator mangled: %q", got)
	}
	got = preprocessSource("(- x 3)")
	if got != "(- x 3)" {
		t.Errorf("minus with spaces mangled: %q", got)
	}
}

func TestPreprocessComments(t *testing.T) {
	got := preprocessSource("; a comment with :keyword and kebab-case\n(+ 1 2)")
	if !strings.HasPrefix(got, "// a comment") {
		t.Errorf("comment not converted: %q", got)
	}
	if strings.Contains(got, "__kw_") {
		t.Errorf("keyword converted inside comment: %q", got)
	}
}

func TestPreprocessStringsUntouched(t *testing.T) {
	in := `(part "kebab-name" :shape s)`
	got := preprocessSource(in)
	if !strings.Contains(got, `"kebab-name"`) {
		t.Errorf("string literal mangled: %q", got)
	}
}

// ---------------------------------------------------------------------------
// Part and group forms
// ---------------------------------------------------------------------------

func TestPartCreatesNode(t *testing.T) {
	a := evalOK(t, `(part "base" :shape (box 100 50 25))`)

	n, err := a.Resolve("base")
	if err != nil {
		t.Fatalf("resolve base: %v", err)
	}
	if n.Solid() == nil {
		t.Fatal("expected base to have a solid")
	}
	c, err := n.Solid().CenterOf(kernel.FeatureCenter)
	if err != nil {
		t.Fatalf("CenterOf: %v", err)
	}
	if c.X != 50 || c.Y != 25 || c.Z != 12.5 {
		t.Errorf("box center = %v, expected (50,25,12.5)", c)
	}
}

func TestPartWithPlacement(t *testing.T) {
	a := evalOK(t, `(part "p" :shape (box 10 10 10) :at (vec3 5 0 0) :rotate (vec3 0 0 90))`)

	n, err := a.Resolve("p")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	w := n.WorldPose()
	if math.Abs(w.T.X-5) > 1e-9 {
		t.Errorf("translation X = %f, expected 5", w.T.X)
	}
	// Quarter turn about Z carries +X onto +Y.
	d := w.ApplyDirection(r3.Vec{X: 1})
	if math.Abs(d.Y-1) > 1e-9 {
		t.Errorf("rotated +X = %v, expected (0,1,0)", d)
	}
}

func TestPartParentByPathAndRef(t *testing.T) {
	a := evalOK(t, `
(group "frame")
(part "leg" :shape (box 40 40 700) :parent "frame")
(def top (part "top" :shape (box 1200 40 600) :parent "frame"))
(part "brace" :shape (box 20 20 500) :parent top)
`)

	for _, path := range []string{"frame", "frame/leg", "frame/top", "frame/top/brace"} {
		if _, err := a.Resolve(path); err != nil {
			t.Errorf("resolve %q: %v", path, err)
		}
	}
}

func TestPartMissingShapeFails(t *testing.T) {
	errs := evalFail(t, `(part "naked")`)
	if !strings.Contains(errs[0].Message, "shape") {
		t.Errorf("error should mention missing shape: %q", errs[0].Message)
	}
}

func TestPartUnknownParentFails(t *testing.T) {
	errs := evalFail(t, `(part "p" :shape (box 1 1 1) :parent "ghost")`)
	if !strings.Contains(errs[0].Message, "ghost") {
		t.Errorf("error should mention the missing parent: %q", errs[0].Message)
	}
}

func TestGroupIsShapeless(t *testing.T) {
	a := evalOK(t, `(group "g" :at (vec3 0 100 0))`)
	n, err := a.Resolve("g")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n.Solid() != nil {
		t.Error("group should have no solid")
	}
	if math.Abs(n.LocalPose().T.Y-100) > 1e-9 {
		t.Errorf("group pose Y = %f, expected 100", n.LocalPose().T.Y)
	}
}

// ---------------------------------------------------------------------------
// Anchors
// ---------------------------------------------------------------------------

func TestAnchorNamesFeature(t *testing.T) {
	a := evalOK(t, `
(part "base" :shape (box 100 50 25))
(anchor "base" "mount" :top)
`)
	n, err := a.Resolve("base")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	f, ok := n.Anchor("mount")
	if !ok {
		t.Fatal("anchor not recorded")
	}
	if f != kernel.FaceTop {
		t.Errorf("anchor feature = %s, expected top", f)
	}
}

func TestAnchorInvalidFeatureFails(t *testing.T) {
	errs := evalFail(t, `
(part "base" :shape (box 1 1 1))
(anchor "base" "m" :sideways)
`)
	if !strings.Contains(errs[0].Message, "sideways") {
		t.Errorf("error should mention the bad feature: %q", errs[0].Message)
	}
}

// ---------------------------------------------------------------------------
// Constraints
// ---------------------------------------------------------------------------

func TestConstrainRecordsConstraint(t *testing.T) {
	a := evalOK(t, `
(part "a" :shape (box 10 10 10))
(part "b" :shape (box 10 10 10) :at (vec3 30 0 0))
(constrain :point "a@top" "b@bottom")
`)
	cs := a.Constraints()
	if len(cs) != 1 {
		t.Fatalf("expected 1 constraint, got %d", len(cs))
	}
	c := cs[0]
	if c.Kind != assembly.Point {
		t.Errorf("kind = %s, expected point", c.Kind)
	}
	if c.Param != 0 {
		t.Errorf("param = %f, expected default 0", c.Param)
	}
	if c.A.Path != "a" || c.A.Feature != "top" {
		t.Errorf("ref A = %v", c.A)
	}
}

func TestConstrainExplicitParam(t *testing.T) {
	a := evalOK(t, `
(part "a" :shape (box 10 10 10))
(part "b" :shape (box 10 10 10))
(constrain :point "a" "b" :param 25)
`)
	cs := a.Constraints()
	if len(cs) != 1 {
		t.Fatalf("expected 1 constraint, got %d", len(cs))
	}
	if cs[0].Param != 25 {
		t.Errorf("param = %f, expected 25", cs[0].Param)
	}
	// Bare path defaults to the center feature.
	if cs[0].A.Feature != "center" {
		t.Errorf("feature = %q, expected center", cs[0].A.Feature)
	}
}

func TestConstrainPointInPlaneKind(t *testing.T) {
	a := evalOK(t, `
(part "a" :shape (box 10 10 10))
(part "b" :shape (box 10 10 10))
(constrain :point-in-plane "a@center" "b@top")
`)
	cs := a.Constraints()
	if len(cs) != 1 {
		t.Fatalf("expected 1 constraint, got %d", len(cs))
	}
	if cs[0].Kind != assembly.PointInPlane {
		t.Errorf("kind = %s, expected point-in-plane", cs[0].Kind)
	}
}

func TestConstrainUnknownNodeFails(t *testing.T) {
	errs := evalFail(t, `
(part "a" :shape (box 1 1 1))
(constrain :point "a" "ghost")
`)
	if !strings.Contains(errs[0].Message, "ghost") {
		t.Errorf("error should mention the unknown node: %q", errs[0].Message)
	}
}

func TestMateShorthand(t *testing.T) {
	a := evalOK(t, `
(part "a" :shape (box 10 10 10))
(part "b" :shape (box 10 10 10))
(mate "a@top" "b@bottom")
`)
	cs := a.Constraints()
	if len(cs) != 1 {
		t.Fatalf("expected 1 constraint, got %d", len(cs))
	}
	if cs[0].Kind != assembly.Plane {
		t.Errorf("kind = %s, expected plane", cs[0].Kind)
	}
	if math.Abs(cs[0].Param-math.Pi) > 1e-12 {
		t.Errorf("param = %f, expected pi", cs[0].Param)
	}
}

func TestConstraintOrderIsStable(t *testing.T) {
	a := evalOK(t, `
(part "a" :shape (box 1 1 1))
(part "b" :shape (box 1 1 1))
(part "c" :shape (box 1 1 1))
(constrain :point "a" "b")
(constrain :point "b" "c")
(constrain :point "c" "a")
`)
	cs := a.Constraints()
	if len(cs) != 3 {
		t.Fatalf("expected 3 constraints, got %d", len(cs))
	}
	for i := 1; i < len(cs); i++ {
		if cs[i].Seq <= cs[i-1].Seq {
			t.Errorf("constraint %d out of order: seq %d after %d", i, cs[i].Seq, cs[i-1].Seq)
		}
	}
}

// ---------------------------------------------------------------------------
// Argument parsing helpers
// ---------------------------------------------------------------------------

func TestParseArgsMixed(t *testing.T) {
	pa := parseArgs(nil)
	if len(pa.positional) != 0 || len(pa.kw) != 0 {
		t.Error("empty args should produce empty result")
	}
}
