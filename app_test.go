package mortise

import (
	"os"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// TestE2EStoolExample exercises the full pipeline: Lisp source → engine →
// assembly → solve → tessellate → meshes.
func TestE2EStoolExample(t *testing.T) {
	app := NewApp()

	source, err := os.ReadFile("examples/stool.mortise")
	if err != nil {
		t.Fatalf("failed to read stool.mortise: %v", err)
	}

	result := app.Evaluate(string(source))

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	if result.Solve == nil {
		t.Fatal("expected a solve result")
	}
	if !result.Solve.Converged {
		t.Fatalf("solve did not converge: %s", result.Solve.Message)
	}

	expectedParts := map[string]bool{
		"seat":   false,
		"column": false,
	}
	if len(result.Meshes) != len(expectedParts) {
		t.Fatalf("expected %d meshes, got %d", len(expectedParts), len(result.Meshes))
	}
	for _, m := range result.Meshes {
		if _, ok := expectedParts[m.PartName]; !ok {
			t.Errorf("unexpected part name: %q", m.PartName)
			continue
		}
		expectedParts[m.PartName] = true

		if len(m.Vertices) == 0 {
			t.Errorf("part %q: no vertices", m.PartName)
		}
		if len(m.Normals) == 0 {
			t.Errorf("part %q: no normals", m.PartName)
		}
		if len(m.Indices) == 0 {
			t.Errorf("part %q: no indices", m.PartName)
		}
		if m.Color == "" {
			t.Errorf("part %q: no color assigned", m.PartName)
		}
	}
	for name, found := range expectedParts {
		if !found {
			t.Errorf("missing mesh for part %q", name)
		}
	}

	// The solved column top must coincide with the seat underside.
	asm := result.Assembly
	if asm == nil {
		t.Fatal("expected the solved assembly on the result")
	}
	col, err := asm.Resolve("column")
	if err != nil {
		t.Fatalf("resolve column: %v", err)
	}
	seat, err := asm.Resolve("seat")
	if err != nil {
		t.Fatalf("resolve seat: %v", err)
	}
	colTop, err := col.Solid().CenterOf("top")
	if err != nil {
		t.Fatalf("column top: %v", err)
	}
	seatBottom, err := seat.Solid().CenterOf("bottom")
	if err != nil {
		t.Fatalf("seat bottom: %v", err)
	}
	a := col.WorldPose().Apply(colTop)
	b := seat.WorldPose().Apply(seatBottom)
	d := r3.Sub(a, b)
	if dist := d.X*d.X + d.Y*d.Y + d.Z*d.Z; dist > 1e-4 {
		t.Errorf("column top %v not on seat underside %v (squared distance %g)", a, b, dist)
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("")

	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
	// Slices must be non-nil so JSON serializes [] rather than null.
	if result.Meshes == nil {
		t.Error("Meshes should be non-nil empty slice, got nil")
	}
	if result.Errors == nil {
		t.Error("Errors should be non-nil empty slice, got nil")
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("(part \"test\"")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2EUnsolvableReference ensures solver validation errors surface as
// pipeline errors, not panics.
func TestE2EUnsolvableReference(t *testing.T) {
	app := NewApp()
	source := `
(part "pin" :shape (cylinder 40 5))
(part "plate" :shape (box 50 10 50) :at (vec3 100 0 0))
(constrain :axis "pin@side" "plate@top")
`
	result := app.Evaluate(source)

	if len(result.Errors) == 0 {
		t.Fatal("expected a solve error for a direction-less feature")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on solve error, got %d", len(result.Meshes))
	}
	if result.Solve != nil {
		t.Error("expected nil solve result when validation fails")
	}
}

// TestE2ENoConstraints ensures an unconstrained design still tessellates.
func TestE2ENoConstraints(t *testing.T) {
	app := NewApp()
	source := `
(part "a" :shape (box 10 10 10))
(part "b" :shape (box 10 10 10) :at (vec3 30 0 0))
`
	result := app.Evaluate(source)

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Solve == nil || !result.Solve.Converged {
		t.Fatal("expected an immediately converged solve")
	}
	if len(result.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(result.Meshes))
	}
}
