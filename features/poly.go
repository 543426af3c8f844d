package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// fitPolynomial solves, for every column of values, the least-squares
// polynomial of the given order in x. The result has order+1 rows with the
// highest degree coefficient first, and one column per input column.
func fitPolynomial(x []float64, values [][]float64, order int) ([][]float64, error) {
	rows := len(x)
	if rows == 0 || len(values) != rows {
		return nil, fmt.Errorf("%w: %d abscissae for %d rows", ErrInvalidInput, rows, len(values))
	}
	cols := len(values[0])
	terms := order + 1

	// Vandermonde matrix with columns scaled to unit norm for conditioning.
	vander := mat.NewDense(rows, terms, nil)
	for i, xi := range x {
		for j := 0; j < terms; j++ {
			vander.Set(i, j, math.Pow(xi, float64(order-j)))
		}
	}
	scale := make([]float64, terms)
	for j := 0; j < terms; j++ {
		norm := mat.Norm(vander.ColView(j), 2)
		if norm == 0 {
			norm = 1
		}
		scale[j] = norm
		for i := 0; i < rows; i++ {
			vander.Set(i, j, vander.At(i, j)/norm)
		}
	}

	rhs := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		rhs.SetRow(i, values[i])
	}

	var qr mat.QR
	qr.Factorize(vander)
	var solution mat.Dense
	if err := qr.SolveTo(&solution, false, rhs); err != nil {
		return nil, fmt.Errorf("polynomial fit failed: %w", err)
	}

	coeffs := make([][]float64, terms)
	for j := 0; j < terms; j++ {
		coeffs[j] = make([]float64, cols)
		for t := 0; t < cols; t++ {
			coeffs[j][t] = solution.At(j, t) / scale[j]
		}
	}
	return coeffs, nil
}
