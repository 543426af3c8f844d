// Package forest implements a random forest classifier: bootstrap-sampled CART
// trees grown on random feature subsets, with predictions averaged over the
// class distributions of the reached leaves. Training is fully determined by
// Params.Seed.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ErrDimensionMismatch is returned when an input vector does not have the
// feature count the forest was trained with.
var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// ErrNotFitted is returned when predicting with an untrained forest.
var ErrNotFitted = errors.New("forest is not fitted")

// Params are the forest hyperparameters.
type Params struct {
	Trees           int    `msgpack:"trees"`
	MaxFeatures     int    `msgpack:"max_features"` // 0 selects floor(sqrt(features))
	MinSamplesSplit int    `msgpack:"min_samples_split"`
	MinSamplesLeaf  int    `msgpack:"min_samples_leaf"`
	MaxDepth        int    `msgpack:"max_depth"` // 0 grows until leaves are pure
	Bootstrap       bool   `msgpack:"bootstrap"`
	Seed            uint64 `msgpack:"seed"`
	// Workers bounds concurrent tree fitting; 0 uses GOMAXPROCS. Each tree owns
	// its generator, so the result does not depend on it.
	Workers int `msgpack:"-"`
}

// DefaultParams returns 100 fully grown, bootstrapped trees seeded with 42.
func DefaultParams() Params {
	return Params{
		Trees:           100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
	}
}

func (p Params) withDefaults() Params {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// Forest is a fitted random forest.
type Forest struct {
	params      Params
	classes     []string
	numFeatures int
	trees       []Tree
}

// New returns an unfitted forest.
func New(params Params) *Forest {
	return &Forest{params: params.withDefaults()}
}

// Params returns the hyperparameters the forest was built with.
func (f *Forest) Params() Params { return f.params }

// NumFeatures is the input dimensionality fixed at fit time.
func (f *Forest) NumFeatures() int { return f.numFeatures }

// Classes returns the sorted class labels.
func (f *Forest) Classes() []string { return append([]string(nil), f.classes...) }

// NumTrees returns the number of fitted trees.
func (f *Forest) NumTrees() int { return len(f.trees) }

// Fit grows the forest on X and labels y. ctx is checked before each tree.
func (f *Forest) Fit(ctx context.Context, X [][]float64, y []string) error {
	if len(X) == 0 {
		return errors.New("no training samples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("%d samples but %d labels", len(X), len(y))
	}
	numFeatures := len(X[0])
	if numFeatures == 0 {
		return errors.New("training samples have no features")
	}
	for i, row := range X {
		if len(row) != numFeatures {
			return fmt.Errorf("%w: sample %d has %d features, expected %d", ErrDimensionMismatch, i, len(row), numFeatures)
		}
	}

	classes, encoded := encodeLabels(y)

	maxFeatures := f.params.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(numFeatures)))
	}
	maxFeatures = max(1, min(maxFeatures, numFeatures))

	workers := f.params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]Tree, f.params.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trees[t] = f.growTree(X, encoded, len(classes), maxFeatures, uint64(t))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.classes = classes
	f.numFeatures = numFeatures
	f.trees = trees
	return nil
}

func (f *Forest) growTree(X [][]float64, y []int, numClasses, maxFeatures int, stream uint64) Tree {
	rng := rand.New(rand.NewPCG(f.params.Seed, stream))
	rows := make([]int, len(X))
	for i := range rows {
		if f.params.Bootstrap {
			rows[i] = rng.IntN(len(X))
		} else {
			rows[i] = i
		}
	}

	order := make([]int, len(X[0]))
	for i := range order {
		order[i] = i
	}
	builder := &treeBuilder{
		x:           X,
		y:           y,
		numClasses:  numClasses,
		maxFeatures: maxFeatures,
		params:      f.params,
		rng:         rng,
		tree:        &Tree{},
		order:       order,
	}
	builder.build(rows, 0)
	return *builder.tree
}

// PredictProba returns the mean leaf class distribution, aligned with Classes().
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != f.numFeatures {
		return nil, fmt.Errorf("%w: got %d features, model expects %d", ErrDimensionMismatch, len(x), f.numFeatures)
	}

	proba := make([]float64, len(f.classes))
	for i := range f.trees {
		for c, p := range f.trees[i].leaf(x) {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.trees))
	}
	return proba, nil
}

// Predict returns the most probable label; ties go to the first class.
func (f *Forest) Predict(x []float64) (string, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return "", err
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.classes[best], nil
}

// PredictBatch predicts every row of X.
func (f *Forest) PredictBatch(X [][]float64) ([]string, error) {
	out := make([]string, len(X))
	for i, row := range X {
		label, err := f.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = label
	}
	return out, nil
}

func encodeLabels(y []string) ([]string, []int) {
	seen := make(map[string]struct{})
	for _, label := range y {
		seen[label] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, label := range classes {
		index[label] = i
	}
	encoded := make([]int, len(y))
	for i, label := range y {
		encoded[i] = index[label]
	}
	return classes, encoded
}
