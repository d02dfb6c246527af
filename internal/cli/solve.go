package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/mortise/pkg/engine"
	"github.com/chazu/mortise/pkg/kernel/sdfx"
	"github.com/chazu/mortise/pkg/solve"
	"github.com/chazu/mortise/pkg/tessellate"
)

// solveOpts holds the command-line flags for the solve command.
type solveOpts struct {
	config string // optional TOML config path
	stl    string // optional STL output path
	stats  bool   // print per-part mesh statistics
}

// newSolveCmd creates the solve command. It evaluates a design file, runs
// the constraint solver and optionally exports the placed geometry.
func newSolveCmd() *cobra.Command {
	var opts solveOpts

	cmd := &cobra.Command{
		Use:   "solve <design.mortise>",
		Short: "Evaluate a design, solve its constraints and report the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := loadConfig(opts.config)
			if err != nil {
				return err
			}

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read design: %w", err)
			}

			k := sdfx.New()
			p := newProgress(logger)
			asm, evalErrs, err := engine.NewEngine(k).Evaluate(string(source))
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			if len(evalErrs) > 0 {
				for _, e := range evalErrs {
					logger.Error("eval error", "line", e.Line, "msg", e.Message)
				}
				return fmt.Errorf("%d evaluation error(s)", len(evalErrs))
			}
			p.done(fmt.Sprintf("evaluated %s", args[0]))

			sopts := cfg.solveOptions()
			sopts.Logger = logger
			p = newProgress(logger)
			res, err := solve.Solve(asm, sopts)
			if err != nil {
				return fmt.Errorf("solve: %w", err)
			}
			p.done(fmt.Sprintf("solved %d constraint(s)", len(asm.Constraints())))

			fmt.Printf("status: %s\n", res.Status)
			fmt.Printf("cost: %g\n", res.Cost)
			fmt.Printf("iterations: %d\n", res.Iterations)
			if !res.Converged {
				logger.Warn("solver did not converge", "msg", res.Message)
			}

			if opts.stats {
				meshes, err := tessellate.Tessellate(asm, k)
				if err != nil {
					return fmt.Errorf("tessellate: %w", err)
				}
				for _, m := range meshes {
					fmt.Printf("%s: %d vertices, %d triangles\n",
						m.PartName, m.VertexCount(), m.TriangleCount())
				}
			}

			if opts.stl != "" {
				p = newProgress(logger)
				if err := tessellate.WriteSTL(asm, k, opts.stl); err != nil {
					return fmt.Errorf("stl export: %w", err)
				}
				p.done(fmt.Sprintf("wrote %s", opts.stl))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "TOML config with solver settings")
	cmd.Flags().StringVarP(&opts.stl, "stl", "o", "", "export placed geometry as STL")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print per-part mesh statistics")
	return cmd
}
