package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/agentic-research/arbor/api"
)

// kpiForest:
//
//	revenue
//	  mrr
//	    expansion
//	  arr
//	churn
func kpiForest(t *testing.T) *Forest {
	t.Helper()
	f, err := Load([]api.NodeRecord{
		{ID: "churn", Order: 2},
		{ID: "arr", ParentID: "revenue", Level: 1, Order: 2},
		{ID: "expansion", ParentID: "mrr", Level: 2, Order: 1},
		{ID: "revenue", Order: 1},
		{ID: "mrr", ParentID: "revenue", Level: 1, Order: 1},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

func ids(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestLoad_RejectsDuplicatesAndEmptyIDs(t *testing.T) {
	if _, err := Load([]api.NodeRecord{{ID: "a"}, {ID: "a"}}); err == nil {
		t.Error("duplicate id accepted")
	}
	if _, err := Load([]api.NodeRecord{{ID: ""}}); err == nil {
		t.Error("empty id accepted")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	f := kpiForest(t)
	n, err := f.Get("mrr")
	if err != nil {
		t.Fatalf("Get(mrr): %v", err)
	}
	n.ParentID = ""
	again, _ := f.Get("mrr")
	if again.ParentID != "revenue" {
		t.Errorf("mutating a returned node changed the forest: parent = %q", again.ParentID)
	}

	if _, err := f.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestChildren_SiblingOrder(t *testing.T) {
	f, err := Load([]api.NodeRecord{
		{ID: "p"},
		{ID: "c", ParentID: "p", Level: 1, Order: 2},
		{ID: "b", ParentID: "p", Level: 1, Order: 1},
		{ID: "a", ParentID: "p", Level: 1, Order: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	// Equal orders break ties by id.
	if got, want := ids(f.Children("p")), []string{"b", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Children(p) = %v, want %v", got, want)
	}
	if got, want := ids(f.Roots()), []string{"p"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Roots() = %v, want %v", got, want)
	}
}

func TestIsDescendant(t *testing.T) {
	f := kpiForest(t)
	cases := []struct {
		a, b string
		want bool
	}{
		{"mrr", "revenue", true},
		{"expansion", "revenue", true},
		{"expansion", "mrr", true},
		{"revenue", "expansion", false},
		{"arr", "mrr", false},
		{"churn", "revenue", false},
		{"revenue", "revenue", false},
		{"expansion", "expansion", false},
		{"missing", "revenue", false},
	}
	for _, tc := range cases {
		if got := f.IsDescendant(tc.a, tc.b); got != tc.want {
			t.Errorf("IsDescendant(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestIsDescendant_MatchesTransitiveClosure(t *testing.T) {
	f := kpiForest(t)
	all := []string{"revenue", "mrr", "expansion", "arr", "churn"}

	// Build the closure independently from the parent links.
	parent := map[string]string{}
	for _, id := range all {
		n, _ := f.Get(id)
		parent[id] = n.ParentID
	}
	closure := map[[2]string]bool{}
	for _, a := range all {
		for p := parent[a]; p != ""; p = parent[p] {
			closure[[2]string{a, p}] = true
		}
	}

	for _, a := range all {
		for _, b := range all {
			if got, want := f.IsDescendant(a, b), closure[[2]string{a, b}]; got != want {
				t.Errorf("IsDescendant(%s, %s) = %v, closure says %v", a, b, got, want)
			}
		}
	}
}

func TestIsDescendant_TerminatesOnCycle(t *testing.T) {
	f, err := Load([]api.NodeRecord{
		{ID: "a", ParentID: "c"},
		{ID: "b", ParentID: "a"},
		{ID: "c", ParentID: "b"},
		{ID: "d"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsDescendant("a", "b") {
		t.Error("a should reach b around the cycle")
	}
	if f.IsDescendant("a", "d") {
		t.Error("a never reaches d")
	}
}

func TestDescendants_Depths(t *testing.T) {
	f := kpiForest(t)
	got := f.Descendants("revenue")
	want := []Descendant{{"mrr", 1}, {"arr", 1}, {"expansion", 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Descendants(revenue) = %v, want %v", got, want)
	}
	if d := f.Descendants("churn"); len(d) != 0 {
		t.Errorf("Descendants(churn) = %v, want none", d)
	}
}

func TestApply_ReturnsPreviousFields(t *testing.T) {
	f := kpiForest(t)
	parent, level, ord := "churn", 1, 5.0
	prev, err := f.Apply(api.Change{ID: "arr", Fields: api.Fields{ParentID: &parent, Level: &level, Order: &ord}})
	if err != nil {
		t.Fatal(err)
	}
	if *prev.ParentID != "revenue" || *prev.Level != 1 || *prev.Order != 2 {
		t.Errorf("prev = %v/%v/%v", *prev.ParentID, *prev.Level, *prev.Order)
	}

	if _, err := f.Apply(api.Change{ID: "arr", Fields: prev}); err != nil {
		t.Fatal(err)
	}
	n, _ := f.Get("arr")
	if n.ParentID != "revenue" || n.Order != 2 {
		t.Errorf("revert left arr at %s/%v", n.ParentID, n.Order)
	}

	if _, err := f.Apply(api.Change{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply(missing) err = %v", err)
	}
}

func TestApply_OnlyTouchesGivenFields(t *testing.T) {
	f := kpiForest(t)
	ord := 0.5
	prev, err := f.Apply(api.Change{ID: "mrr", Fields: api.Fields{Order: &ord}})
	if err != nil {
		t.Fatal(err)
	}
	if prev.ParentID != nil || prev.Level != nil {
		t.Errorf("prev carries untouched fields: %+v", prev)
	}
	n, _ := f.Get("mrr")
	if n.ParentID != "revenue" || n.Level != 1 || n.Order != 0.5 {
		t.Errorf("mrr = %+v", n)
	}
}

func TestSnapshot_Order(t *testing.T) {
	f := kpiForest(t)
	var got []string
	for _, r := range f.Snapshot() {
		got = append(got, r.ID)
	}
	want := []string{"revenue", "churn", "mrr", "arr", "expansion"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot order = %v, want %v", got, want)
	}
}

func TestCheck(t *testing.T) {
	if err := kpiForest(t).Check(); err != nil {
		t.Fatalf("valid forest failed check: %v", err)
	}

	f, err := Load([]api.NodeRecord{
		{ID: "root"},
		{ID: "stale", ParentID: "root", Level: 3},
		{ID: "lost", ParentID: "ghost", Level: 1},
		{ID: "x", ParentID: "y", Level: 1},
		{ID: "y", ParentID: "x", Level: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	var ie *InvariantError
	if !errors.As(f.Check(), &ie) {
		t.Fatal("expected *InvariantError")
	}
	if !reflect.DeepEqual(ie.Cycles, []string{"x", "y"}) {
		t.Errorf("Cycles = %v", ie.Cycles)
	}
	if !reflect.DeepEqual(ie.Orphans, []string{"lost"}) {
		t.Errorf("Orphans = %v", ie.Orphans)
	}
	if !reflect.DeepEqual(ie.DepthDrift, []string{"stale"}) {
		t.Errorf("DepthDrift = %v", ie.DepthDrift)
	}
}

func TestSwap(t *testing.T) {
	f := kpiForest(t)
	next, err := Load([]api.NodeRecord{{ID: "only"}})
	if err != nil {
		t.Fatal(err)
	}
	f.Swap(next)

	if f.Len() != 1 {
		t.Fatalf("Len after swap = %d", f.Len())
	}
	if _, err := f.Get("revenue"); !errors.Is(err, ErrNotFound) {
		t.Error("old nodes survived the swap")
	}
	if f.IsDescendant("only", "only") {
		t.Error("swapped forest lost irreflexivity")
	}
}
