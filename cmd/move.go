package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/arbor/internal/gesture"
	"github.com/agentic-research/arbor/internal/hierarchy"
	"github.com/agentic-research/arbor/internal/mutation"
	"github.com/spf13/cobra"
)

var (
	moveOp     string
	moveX      float64
	moveY      float64
	moveWidth  float64
	moveHeight float64
)

func init() {
	moveCmd.Flags().StringVar(&moveOp, "op", "", "Explicit operation: before, after or child")
	moveCmd.Flags().Float64Var(&moveX, "x", 0, "Drop x relative to the target row")
	moveCmd.Flags().Float64Var(&moveY, "y", 0, "Drop y relative to the target row")
	moveCmd.Flags().Float64Var(&moveWidth, "width", 0, "Target row width")
	moveCmd.Flags().Float64Var(&moveHeight, "height", 0, "Target row height")
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(rootMoveCmd)
}

var moveCmd = &cobra.Command{
	Use:   "move [dragged] [target]",
	Short: "Move a node relative to a target, by explicit op or drop position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var res *mutation.Result
		if moveOp != "" {
			op, err := hierarchy.ParseOp(moveOp)
			if err != nil {
				return err
			}
			if op == hierarchy.Root {
				return fmt.Errorf("use `arbor root %s` to move a node to the root", args[0])
			}
			res, err = s.engine.Move(ctx, op, args[0], args[1])
			return printOutcome(res, err)
		}

		res, err = s.engine.Apply(ctx, gesture.Gesture{
			DraggedID: args[0],
			TargetID:  args[1],
			X:         moveX,
			Y:         moveY,
			Width:     moveWidth,
			Height:    moveHeight,
		})
		return printOutcome(res, err)
	},
}

var rootMoveCmd = &cobra.Command{
	Use:   "root [dragged]",
	Short: "Detach a node and append it after all roots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.engine.MoveToRoot(ctx, args[0])
		return printOutcome(res, err)
	},
}

// printOutcome writes the outcome as JSON and fails the command when the
// move was not applied.
func printOutcome(res *mutation.Result, err error) error {
	out := mutation.OutcomeOf(res, err)
	data, merr := json.MarshalIndent(out, "", "  ")
	if merr != nil {
		return merr
	}
	fmt.Println(string(data))
	if !out.Applied {
		return fmt.Errorf("move not applied: %s", out.Reason)
	}
	return nil
}
