// forest-gen writes a random forest as a JSON export that `arbor import`
// accepts. Useful for load testing moves against a realistic store.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

type item struct {
	ID       string  `json:"id"`
	ParentID string  `json:"parent_id,omitempty"`
	Order    float64 `json:"order"`
	Name     string  `json:"name"`
}

type export struct {
	Items []item `json:"items"`
}

func main() {
	nodes := flag.Int("nodes", 100, "Number of nodes to generate")
	roots := flag.Int("roots", 5, "Number of root nodes")
	maxDepth := flag.Int("depth", 4, "Maximum depth below a root (at least 1)")
	seed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	out := flag.String("out", "", "Output file (default stdout)")
	flag.Parse()

	if *roots < 1 || *nodes < *roots || *maxDepth < 1 {
		flag.Usage()
		os.Exit(1)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	data, err := json.MarshalIndent(generate(rng, *nodes, *roots, *maxDepth), "", "  ")
	if err != nil {
		fatal(err)
	}
	if *out == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "wrote %d nodes (seed %d) to %s\n", *nodes, *seed, *out)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// generate attaches each non-root node under a random earlier node whose
// depth still allows a child, so the result is always a valid forest.
func generate(rng *rand.Rand, nodes, roots, maxDepth int) export {
	depth := make([]int, 0, nodes)
	nextOrder := make(map[string]float64)
	var exp export

	for i := 0; i < nodes; i++ {
		it := item{ID: fmt.Sprintf("n%04d", i), Name: fmt.Sprintf("Node %d", i)}
		d := 0
		if i >= roots {
			for {
				p := rng.Intn(i)
				if depth[p] < maxDepth {
					it.ParentID = exp.Items[p].ID
					d = depth[p] + 1
					break
				}
			}
		}
		nextOrder[it.ParentID]++
		it.Order = nextOrder[it.ParentID]
		depth = append(depth, d)
		exp.Items = append(exp.Items, it)
	}
	return exp
}
