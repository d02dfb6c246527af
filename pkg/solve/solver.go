package solve

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/chazu/mortise/pkg/assembly"
)

// Default solver settings. Tolerance is an absolute threshold on the total
// cost improvement between iterations (squared model units).
const (
	DefaultTolerance     = 1e-9
	DefaultMaxIterations = 500

	// convergeIterations is how many consecutive iterations must improve
	// by less than the tolerance before the optimizer stops.
	convergeIterations = 10
)

// Options configures a solve.
type Options struct {
	// Tolerance is the absolute cost-improvement threshold below which
	// the optimizer is considered converged. Zero means DefaultTolerance.
	Tolerance float64

	// MaxIterations caps optimizer major iterations. Hitting the cap is
	// reported as non-convergence, not an error. Zero means
	// DefaultMaxIterations.
	MaxIterations int

	// DirWeight scales angular cost terms against positional ones.
	// Zero means DefaultDirWeight.
	DirWeight float64

	// Logger receives solve progress at debug/info level. Nil disables
	// logging.
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.DirWeight == 0 {
		o.DirWeight = DefaultDirWeight
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Status is the terminal state of a solve that reached the commit step.
type Status int

const (
	// StatusCommitted: the optimizer converged and poses were written back.
	StatusCommitted Status = iota
	// StatusNotConverged: the iteration cap (or an optimizer stall) was
	// hit; the best poses found were still written back.
	StatusNotConverged
)

func (s Status) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusNotConverged:
		return "not-converged"
	default:
		return "unknown"
	}
}

// Result reports the outcome of one Solve call.
type Result struct {
	Converged  bool
	Status     Status
	Cost       float64 // final total cost
	Iterations int     // optimizer major iterations
	Message    string  // diagnostic when not converged
}

// Validate resolves every constraint against the assembly without solving.
// It surfaces the same structural errors a Solve call would: unknown
// references, unsupported features and shapeless nodes. The assembly is
// never mutated.
func Validate(a *assembly.Assembly) error {
	_, err := buildProblem(a)
	return err
}

// Solve validates the assembly's constraints, minimizes their total cost
// over the free nodes' poses, and writes the resulting poses back into the
// graph.
//
// Structural errors (unknown references, unsupported features) abort before
// any pose is mutated and are returned as an error. Numerical
// non-convergence is not an error: the best poses found are committed and
// the Result carries StatusNotConverged.
//
// The assembly is borrowed for the duration of the call; it must not be
// mutated concurrently.
func Solve(a *assembly.Assembly, opts Options) (Result, error) {
	opts = opts.withDefaults()
	logger := opts.Logger

	logger.Debug("validating constraints", "count", len(a.Constraints()))
	p, err := buildProblem(a)
	if err != nil {
		return Result{}, err
	}

	// Nothing to optimize: no constraints, or every reference is fixed.
	if len(p.terms) == 0 || len(p.free) == 0 {
		logger.Debug("no free parameters, committing immediately")
		return Result{Converged: true, Status: StatusCommitted}, nil
	}

	objective := func(x []float64) float64 {
		return p.cost(x, opts.DirWeight)
	}

	// Dry run at the initial poses: catches an already-satisfied system
	// (idempotent re-solve) without disturbing it.
	initial := objective(p.x0)
	logger.Debug("optimizing", "free_nodes", len(p.free), "terms", len(p.terms), "initial_cost", initial)
	if initial <= opts.Tolerance {
		return Result{Converged: true, Status: StatusCommitted, Cost: initial}, nil
	}

	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Iterations: convergeIterations,
		},
		MajorIterations: opts.MaxIterations,
	}

	// BFGS needs a gradient; the cost has no analytic one, so estimate it
	// with central finite differences.
	problem := optimize.Problem{
		Func: objective,
		Grad: func(dst, x []float64) {
			fd.Gradient(dst, objective, x, nil)
		},
	}
	x0 := append([]float64(nil), p.x0...)
	res, optErr := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if res == nil || res.X == nil {
		return Result{}, fmt.Errorf("optimizer failed: %w", optErr)
	}

	p.commit(res.X)

	out := Result{
		Cost:       res.F,
		Iterations: res.Stats.MajorIterations,
	}
	switch {
	case out.Cost <= opts.Tolerance:
		// The minimum was reached even if the optimizer stopped with an
		// error or a limit status; linesearch routinely stalls at the
		// solution once no descent direction is left.
		out.Converged = true
		out.Status = StatusCommitted
	case optErr != nil:
		// Linesearch stalls and similar failures away from the minimum:
		// the best point found is still committed, flagged as
		// non-convergence.
		out.Status = StatusNotConverged
		out.Message = fmt.Sprintf("optimizer stopped early: %v", optErr)
	case res.Status == optimize.IterationLimit || res.Status == optimize.FunctionEvaluationLimit ||
		res.Status == optimize.NotTerminated:
		out.Status = StatusNotConverged
		out.Message = fmt.Sprintf("no convergence after %d iterations (cost %g)", out.Iterations, out.Cost)
	default:
		out.Converged = true
		out.Status = StatusCommitted
	}

	logger.Info("solve finished",
		"status", out.Status.String(),
		"cost", out.Cost,
		"iterations", out.Iterations,
	)
	return out, nil
}
