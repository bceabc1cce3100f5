package merge

import "github.com/abyrne55/verifier-log-analysis/internal/record"

// Index holds one Record per cluster id in first-seen order.
type Index struct {
	order []string
	byID  map[string]*Record
	dupes int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byID: make(map[string]*Record)}
}

// Add creates the cluster's record on first sight and folds o into it
// afterwards. Duplicate observations are counted and otherwise ignored.
func (x *Index) Add(o record.Observation) {
	r, ok := x.byID[o.ClusterID]
	if !ok {
		x.byID[o.ClusterID] = New(o)
		x.order = append(x.order, o.ClusterID)
		return
	}
	// Index keys guarantee matching cluster ids, so Add cannot fail here.
	if added, _ := r.Add(o); !added {
		x.dupes++
	}
}

// Get returns the record for a cluster id.
func (x *Index) Get(clusterID string) (*Record, bool) {
	r, ok := x.byID[clusterID]
	return r, ok
}

// Len returns the number of distinct clusters.
func (x *Index) Len() int { return len(x.order) }

// Duplicates returns how many observations were dropped as exact repeats.
func (x *Index) Duplicates() int { return x.dupes }

// ClusterIDs returns cluster ids in first-seen order.
func (x *Index) ClusterIDs() []string {
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// Records returns the merged records in first-seen order.
func (x *Index) Records() []*Record {
	out := make([]*Record, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.byID[id])
	}
	return out
}
