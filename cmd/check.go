package cmd

import (
	"fmt"
	"strings"

	"github.com/agentic-research/arbor/internal/graph"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(treeCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the stored forest has no cycles, dangling parents or stale levels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		f := s.engine.Forest()
		if err := f.Check(); err != nil {
			return err
		}
		fmt.Printf("ok: %d nodes\n", f.Len())
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the forest in sibling order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		var sb strings.Builder
		writeTree(&sb, s.engine.Forest())
		fmt.Print(sb.String())
		return nil
	},
}

// writeTree renders each root and its subtree, one node per line, indented
// by depth. Nodes on a cycle are never reached from a root and are skipped.
func writeTree(sb *strings.Builder, f *graph.Forest) {
	var walk func(n graph.Node, depth int, seen map[string]bool)
	walk = func(n graph.Node, depth int, seen map[string]bool) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true
		fmt.Fprintf(sb, "%s%s (level %d, order %g)\n", strings.Repeat("  ", depth), n.ID, n.Level, n.Order)
		for _, c := range f.Children(n.ID) {
			walk(c, depth+1, seen)
		}
	}
	seen := make(map[string]bool)
	for _, r := range f.Roots() {
		walk(r, 0, seen)
	}
}
