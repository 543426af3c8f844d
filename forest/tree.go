package forest

import (
	"math/rand/v2"
	"sort"
)

// Node is one vertex of a flattened decision tree. Leaves have Feature == -1
// and carry the class distribution of the training rows that reached them.
type Node struct {
	Feature   int       `msgpack:"f"`
	Threshold float64   `msgpack:"t"`
	Left      int       `msgpack:"l"`
	Right     int       `msgpack:"r"`
	Dist      []float64 `msgpack:"d,omitempty"`
}

// Tree is a CART classifier stored as a node slice; index 0 is the root.
type Tree struct {
	Nodes []Node `msgpack:"nodes"`
}

func (t *Tree) leaf(x []float64) []float64 {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.Feature < 0 {
			return node.Dist
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

type treeBuilder struct {
	x           [][]float64
	y           []int
	numClasses  int
	maxFeatures int
	params      Params
	rng         *rand.Rand
	tree        *Tree
	order       []int
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
	pivot     int
}

func (b *treeBuilder) build(rows []int, depth int) int {
	counts := make([]float64, b.numClasses)
	for _, r := range rows {
		counts[b.y[r]]++
	}

	if b.isLeaf(rows, counts, depth) {
		return b.addLeaf(counts, len(rows))
	}

	best, ok := b.bestSplit(rows)
	if !ok {
		return b.addLeaf(counts, len(rows))
	}

	// bestSplit leaves rows ordered by the last feature it looked at.
	b.sortByFeature(rows, best.feature)
	left := append([]int(nil), rows[:best.pivot]...)
	right := append([]int(nil), rows[best.pivot:]...)

	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: best.feature, Threshold: best.threshold})
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.Nodes[idx].Left = l
	b.tree.Nodes[idx].Right = r
	return idx
}

func (b *treeBuilder) isLeaf(rows []int, counts []float64, depth int) bool {
	if len(rows) < b.params.MinSamplesSplit || len(rows) < 2*b.params.MinSamplesLeaf {
		return true
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func (b *treeBuilder) addLeaf(counts []float64, total int) int {
	dist := make([]float64, len(counts))
	for i, c := range counts {
		dist[i] = c / float64(total)
	}
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: -1, Dist: dist})
	return len(b.tree.Nodes) - 1
}

// bestSplit draws features in random order and evaluates the first
// maxFeatures of them that are not constant on rows.
func (b *treeBuilder) bestSplit(rows []int) (split, bool) {
	b.rng.Shuffle(len(b.order), func(i, j int) { b.order[i], b.order[j] = b.order[j], b.order[i] })

	best := split{impurity: 2}
	found := false
	visited := 0
	for _, feature := range b.order {
		if visited >= b.maxFeatures {
			break
		}
		b.sortByFeature(rows, feature)
		if b.x[rows[0]][feature] == b.x[rows[len(rows)-1]][feature] {
			continue
		}
		visited++

		if candidate, ok := b.scanFeature(rows, feature); ok && candidate.impurity < best.impurity {
			best = candidate
			found = true
		}
	}
	return best, found
}

// scanFeature sweeps the sorted rows and returns the threshold with the lowest
// weighted Gini impurity.
func (b *treeBuilder) scanFeature(rows []int, feature int) (split, bool) {
	n := len(rows)
	total := make([]float64, b.numClasses)
	for _, r := range rows {
		total[b.y[r]]++
	}
	left := make([]float64, b.numClasses)

	best := split{feature: feature, impurity: 2}
	found := false
	minLeaf := b.params.MinSamplesLeaf
	for i := 0; i < n-1; i++ {
		left[b.y[rows[i]]]++
		nLeft := i + 1
		nRight := n - nLeft
		if nLeft < minLeaf || nRight < minLeaf {
			continue
		}
		current := b.x[rows[i]][feature]
		next := b.x[rows[i+1]][feature]
		if current == next {
			continue
		}

		impurity := (float64(nLeft)*giniFrom(left, nLeft) + float64(nRight)*giniRight(total, left, nRight)) / float64(n)
		if impurity < best.impurity {
			threshold := current + (next-current)/2
			if threshold >= next {
				threshold = current
			}
			best = split{feature: feature, threshold: threshold, impurity: impurity, pivot: nLeft}
			found = true
		}
	}
	return best, found
}

func (b *treeBuilder) sortByFeature(rows []int, feature int) {
	sort.SliceStable(rows, func(i, j int) bool {
		return b.x[rows[i]][feature] < b.x[rows[j]][feature]
	})
}

func giniFrom(counts []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func giniRight(total, left []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := range total {
		p := (total[i] - left[i]) / float64(n)
		sum += p * p
	}
	return 1 - sum
}
