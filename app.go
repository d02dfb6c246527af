// Package mortise ties the evaluation engine, the constraint solver and
// the tessellator into one pipeline: Lisp source in, solved and placed
// triangle meshes out.
package mortise

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/chazu/mortise/pkg/assembly"
	"github.com/chazu/mortise/pkg/engine"
	"github.com/chazu/mortise/pkg/kernel"
	"github.com/chazu/mortise/pkg/kernel/sdfx"
	"github.com/chazu/mortise/pkg/solve"
	"github.com/chazu/mortise/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the top-level pipeline. It exposes one Evaluate method that runs
// source code through the engine, solves the declared constraints and
// tessellates the result.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	logger *log.Logger
	solver solve.Options
}

// MeshData is a JSON-serializable mesh, one per placed part.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable evaluation error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of one pipeline run. Solve is nil when
// evaluation failed before the solver ran.
type EvalResult struct {
	Meshes   []MeshData         `json:"meshes"`
	Errors   []EvalErrorData    `json:"errors"`
	Solve    *solve.Result      `json:"solve,omitempty"`
	Assembly *assembly.Assembly `json:"-"`
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger used by the pipeline and the solver.
func WithLogger(l *log.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithSolveOptions overrides the default solver settings.
func WithSolveOptions(o solve.Options) Option {
	return func(a *App) { a.solver = o }
}

// NewApp creates a new App with an engine and the sdfx kernel.
func NewApp(opts ...Option) *App {
	k := sdfx.New()
	a := &App{
		engine: engine.NewEngine(k),
		kernel: k,
		logger: log.New(io.Discard),
	}
	for _, o := range opts {
		o(a)
	}
	a.solver.Logger = a.logger
	return a
}

// Kernel returns the geometry kernel backing this App.
func (a *App) Kernel() kernel.Kernel {
	return a.kernel
}

// Evaluate takes Lisp source and returns solved mesh data plus any errors.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes: []MeshData{},
		Errors: []EvalErrorData{},
	}

	asm, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.logger.Error("evaluate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	result.Assembly = asm

	// Solve the declared constraints before producing geometry. Structural
	// errors abort; numerical non-convergence still yields meshes at the
	// best poses found.
	sres, err := solve.Solve(asm, a.solver)
	if err != nil {
		a.logger.Error("solve failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "solve failed: " + err.Error(),
		})
		return result
	}
	result.Solve = &sres

	meshes, err := tessellate.Tessellate(asm, a.kernel)
	if err != nil {
		a.logger.Error("tessellate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}

	for i, m := range meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	return result
}
