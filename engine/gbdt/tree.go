package gbdt

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

const minSplitGain = 1e-12

// treeBuilder grows one regression tree on the current gradient/hessian
// vectors using exact greedy split search.
type treeBuilder struct {
	X          *mat.Dense
	grad, hess []float64

	maxDepth  int
	minLeaf   int
	lambda    float64
	shrinkage float64

	nodes []Node
}

type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
	leftIdx   []int
	rightIdx  []int
}

// build grows the tree over the given record indices and returns it with
// per-node expected values filled in.
func (b *treeBuilder) build(indices []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(indices, 0)
	tree := Tree{Nodes: make([]Node, len(b.nodes))}
	copy(tree.Nodes, b.nodes)
	fillMeans(tree.Nodes, 0)
	return tree
}

// grow adds the subtree for indices and returns its node id.
func (b *treeBuilder) grow(indices []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Feature: -1, Count: len(indices)})

	if depth >= b.maxDepth || len(indices) < 2*b.minLeaf {
		b.nodes[id].Value = b.leafValue(indices)
		return id
	}

	split := b.bestSplit(indices)
	if split == nil {
		b.nodes[id].Value = b.leafValue(indices)
		return id
	}

	b.nodes[id].Feature = split.feature
	b.nodes[id].Threshold = split.threshold
	b.nodes[id].Gain = split.gain

	left := b.grow(split.leftIdx, depth+1)
	right := b.grow(split.rightIdx, depth+1)
	b.nodes[id].Left = left
	b.nodes[id].Right = right
	return id
}

// bestSplit scans every feature for the maximum-gain threshold, or nil when no
// split clears the minimum gain with both children at minLeaf.
func (b *treeBuilder) bestSplit(indices []int) *splitInfo {
	_, cols := b.X.Dims()

	var sumG, sumH float64
	for _, idx := range indices {
		sumG += b.grad[idx]
		sumH += b.hess[idx]
	}
	parentScore := sumG * sumG / (sumH + b.lambda)

	var best *splitInfo
	ordered := make([]int, len(indices))

	for j := 0; j < cols; j++ {
		copy(ordered, indices)
		sort.Slice(ordered, func(a, c int) bool {
			return b.X.At(ordered[a], j) < b.X.At(ordered[c], j)
		})

		var leftG, leftH float64
		for i := 0; i < len(ordered)-1; i++ {
			idx := ordered[i]
			leftG += b.grad[idx]
			leftH += b.hess[idx]

			if i+1 < b.minLeaf || len(ordered)-i-1 < b.minLeaf {
				continue
			}
			v, next := b.X.At(idx, j), b.X.At(ordered[i+1], j)
			if v == next {
				continue // cannot separate identical values
			}

			rightG := sumG - leftG
			rightH := sumH - leftH
			gain := 0.5 * (leftG*leftG/(leftH+b.lambda) +
				rightG*rightG/(rightH+b.lambda) - parentScore)
			if gain < minSplitGain {
				continue
			}
			if best == nil || gain > best.gain {
				best = &splitInfo{
					feature:   j,
					threshold: (v + next) / 2,
					gain:      gain,
				}
			}
		}
	}

	if best == nil {
		return nil
	}

	for _, idx := range indices {
		if b.X.At(idx, best.feature) <= best.threshold {
			best.leftIdx = append(best.leftIdx, idx)
		} else {
			best.rightIdx = append(best.rightIdx, idx)
		}
	}
	return best
}

// leafValue is the regularized Newton step for the records in the leaf, with
// shrinkage folded in.
func (b *treeBuilder) leafValue(indices []int) float64 {
	var sumG, sumH float64
	for _, idx := range indices {
		sumG += b.grad[idx]
		sumH += b.hess[idx]
	}
	return -sumG / (sumH + b.lambda) * b.shrinkage
}

// fillMeans computes the count-weighted expected value of every subtree,
// bottom-up. Used by path attribution.
func fillMeans(nodes []Node, id int) float64 {
	node := &nodes[id]
	if node.IsLeaf() {
		node.Mean = node.Value
		return node.Mean
	}

	leftMean := fillMeans(nodes, node.Left)
	rightMean := fillMeans(nodes, node.Right)
	leftCount := float64(nodes[node.Left].Count)
	rightCount := float64(nodes[node.Right].Count)

	total := leftCount + rightCount
	if total == 0 {
		node.Mean = 0
		return 0
	}
	node.Mean = (leftMean*leftCount + rightMean*rightCount) / total
	return node.Mean
}
