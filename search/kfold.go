package search

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Fold is one train/validate split of the cross-validation.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// stratifiedFolds splits the label vector into k folds preserving class
// balance. Indices are shuffled per class with the given source so fold
// membership is deterministic for a fixed seed.
func stratifiedFolds(y []float64, k int, rng *rand.Rand) []Fold {
	if k < 2 {
		k = 5
	}

	classIndices := make(map[float64][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}

	// Iterate classes in a fixed order; map iteration would break determinism.
	classes := make([]float64, 0, len(classIndices))
	for label := range classIndices {
		classes = append(classes, label)
	}
	for i := 1; i < len(classes); i++ {
		for j := i; j > 0 && classes[j] < classes[j-1]; j-- {
			classes[j], classes[j-1] = classes[j-1], classes[j]
		}
	}

	for _, label := range classes {
		indices := classIndices[label]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, k)
	for _, label := range classes {
		indices := classIndices[label]
		for i, idx := range indices {
			f := i % k
			folds[f].TestIndices = append(folds[f].TestIndices, idx)
		}
	}

	// When every class has fewer members than k, the round-robin assignment
	// leaves trailing folds without a validation set; drop them.
	kept := folds[:0]
	for _, f := range folds {
		if len(f.TestIndices) > 0 {
			kept = append(kept, f)
		}
	}
	folds = kept

	n := len(y)
	for f := range folds {
		inTest := make(map[int]bool, len(folds[f].TestIndices))
		for _, idx := range folds[f].TestIndices {
			inTest[idx] = true
		}
		folds[f].TrainIndices = make([]int, 0, n-len(folds[f].TestIndices))
		for i := 0; i < n; i++ {
			if !inTest[i] {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
	}

	return folds
}

// subset extracts the rows of X and y at the given indices.
func subset(X *mat.Dense, y []float64, indices []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	subX := mat.NewDense(len(indices), cols, nil)
	subY := make([]float64, len(indices))
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			subX.Set(i, j, X.At(idx, j))
		}
		subY[i] = y[idx]
	}
	return subX, subY
}
