package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/mortise/pkg/engine"
	"github.com/chazu/mortise/pkg/kernel/sdfx"
	"github.com/chazu/mortise/pkg/solve"
)

// newCheckCmd creates the check command. It evaluates a design file and
// validates every constraint reference without moving any part.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <design.mortise>",
		Short: "Evaluate a design and validate its constraints without solving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read design: %w", err)
			}

			asm, evalErrs, err := engine.NewEngine(sdfx.New()).Evaluate(string(source))
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			if len(evalErrs) > 0 {
				for _, e := range evalErrs {
					logger.Error("eval error", "line", e.Line, "msg", e.Message)
				}
				return fmt.Errorf("%d evaluation error(s)", len(evalErrs))
			}

			if err := solve.Validate(asm); err != nil {
				return fmt.Errorf("invalid constraint: %w", err)
			}

			fmt.Printf("%s: ok (%d constraint(s))\n", args[0], len(asm.Constraints()))
			return nil
		},
	}
}
