// Package gbdt is the default boosting backend: depth-limited gradient-boosted
// regression trees on the binary logistic objective. It implements the
// engine.Engine and engine.Model capabilities consumed by the pipeline.
package gbdt

import (
	"encoding/json"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"hfoutcome/pkg/errors"
)

// Node is a single node in a boosted tree. Left/Right are -1 for leaves.
type Node struct {
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Gain      float64 `json:"gain"`
	Value     float64 `json:"value"` // leaf value, shrinkage already applied
	Mean      float64 `json:"mean"`  // count-weighted expected subtree value
	Count     int     `json:"count"`
}

// IsLeaf reports whether the node is terminal.
func (n *Node) IsLeaf() bool { return n.Left == -1 && n.Right == -1 }

// Tree is one regression tree of the ensemble, nodes stored flat with the root
// at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// predict returns the raw leaf value for one sample.
func (t *Tree) predict(x []float64) float64 {
	id := 0
	for id >= 0 && id < len(t.Nodes) {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			id = node.Left
		} else {
			id = node.Right
		}
	}
	return 0
}

// Model is a trained gbdt ensemble. Immutable after training except Release.
type Model struct {
	NumFeatures int     `json:"num_features"`
	InitScore   float64 `json:"init_score"`
	Trees       []Tree  `json:"trees"`
}

// Score returns the positive-class probability per record.
func (m *Model) Score(X *mat.Dense) ([]float64, error) {
	if m.Trees == nil {
		return nil, errors.New("gbdt: model released or not trained")
	}
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.Newf("gbdt: feature dimension mismatch: expected %d, got %d", m.NumFeatures, cols)
	}

	probs := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		raw := m.InitScore
		for ti := range m.Trees {
			raw += m.Trees[ti].predict(row)
		}
		probs[i] = sigmoid(raw)
	}
	return probs, nil
}

// Importance returns gain-based feature importance, normalized to sum to one.
func (m *Model) Importance() []float64 {
	importance := make([]float64, m.NumFeatures)
	for ti := range m.Trees {
		for ni := range m.Trees[ti].Nodes {
			node := &m.Trees[ti].Nodes[ni]
			if !node.IsLeaf() {
				importance[node.Feature] += node.Gain
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance
}

// Attribution returns per-record, per-feature signed contributions. Each split
// on the record's root-to-leaf path moves the expected tree output from the
// parent's mean to the taken child's mean; that step is credited to the split
// feature and summed over all trees.
func (m *Model) Attribution(X *mat.Dense) (*mat.Dense, error) {
	if m.Trees == nil {
		return nil, errors.New("gbdt: model released or not trained")
	}
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.Newf("gbdt: feature dimension mismatch: expected %d, got %d", m.NumFeatures, cols)
	}

	out := mat.NewDense(rows, cols, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		for ti := range m.Trees {
			tree := &m.Trees[ti]
			if len(tree.Nodes) == 0 {
				continue
			}
			id := 0
			for !tree.Nodes[id].IsLeaf() {
				node := &tree.Nodes[id]
				next := node.Left
				if row[node.Feature] > node.Threshold {
					next = node.Right
				}
				step := tree.Nodes[next].Mean - node.Mean
				out.Set(i, node.Feature, out.At(i, node.Feature)+step)
				id = next
			}
		}
	}
	return out, nil
}

// Save persists the model as JSON so Load rescoring is bit-identical.
func (m *Model) Save(path string) error {
	if m.Trees == nil {
		return errors.New("gbdt: model released or not trained")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "gbdt: marshal model")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "gbdt: write model")
	}
	return nil
}

// Load reads a model previously written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "gbdt: read model")
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "gbdt: unmarshal model")
	}
	if m.Trees == nil {
		m.Trees = []Tree{}
	}
	return &m, nil
}

// Release frees the ensemble. The model must not be scored afterwards.
func (m *Model) Release() {
	m.Trees = nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
