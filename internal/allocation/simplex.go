package allocation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Penalty weight for the sum-to-1 equality constraint
const simplexPenalty = 1000.0

// SolverOptions bound the numerical optimizers shared by the
// optimization-based models.
type SolverOptions struct {
	Tolerance     float64 // gradient threshold for convergence
	MaxIterations int     // hard cap on major iterations
}

func (o SolverOptions) withDefaults() SolverOptions {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-8
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 1000
	}
	return o
}

// minimizeOnSimplex minimizes the objective over {w >= 0, sum(w) = 1}
// starting from equal weights. The feasible region is enforced by
// projecting iterates into the unit box and penalizing the sum constraint,
// then renormalizing the converged point back onto the simplex.
//
// The gradient may be nil, in which case the derivative-free Nelder-Mead
// method is used. With a gradient, BFGS is tried first, with a Nelder-Mead
// retry when it fails outright.
func minimizeOnSimplex(
	n int,
	objective func(w []float64) float64,
	gradient func(grad, w []float64),
	opts SolverOptions,
) ([]float64, error) {
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	opts = opts.withDefaults()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToUnitBox(x)
			obj := objective(xProj)

			sum := 0.0
			for _, v := range xProj {
				sum += v
			}
			return obj + simplexPenalty*(sum-1.0)*(sum-1.0)
		},
	}

	if gradient != nil {
		problem.Grad = func(grad, x []float64) {
			xProj := projectToUnitBox(x)
			gradient(grad, xProj)

			sum := 0.0
			for _, v := range xProj {
				sum += v
			}
			for i := range grad {
				grad[i] += 2 * simplexPenalty * (sum - 1.0)
			}
		}
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	settings := &optimize.Settings{
		GradientThreshold: opts.Tolerance,
		MajorIterations:   opts.MaxIterations,
	}

	// BFGS requires an analytic gradient; Minimize panics on a nil Grad.
	var method optimize.Method = &optimize.NelderMead{}
	if gradient != nil {
		method = &optimize.BFGS{}
	}

	result, err := optimize.Minimize(problem, initial, settings, method)
	if err != nil && gradient != nil {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	}
	if err != nil {
		return nil, fmt.Errorf("optimization failed: %w", err)
	}

	// Accept the convergence statuses that indicate a usable optimum;
	// anything else (iteration limit included) is a solver failure.
	switch result.Status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
	default:
		return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
	}

	return normalizeToSimplex(result.X)
}

// projectToUnitBox clamps each coordinate to [0, 1].
func projectToUnitBox(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(0.0, math.Min(1.0, x[i]))
	}
	return proj
}

// normalizeToSimplex clamps negatives and rescales to sum exactly to one.
// A non-finite or all-zero solution is a solver failure, never silently
// passed on.
func normalizeToSimplex(x []float64) ([]float64, error) {
	weights := make([]float64, len(x))
	sum := 0.0
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("solver produced non-finite weight at index %d", i)
		}
		weights[i] = math.Max(0.0, math.Min(1.0, v))
		sum += weights[i]
	}

	if sum <= 1e-10 {
		return nil, fmt.Errorf("solver produced a degenerate all-zero weight vector")
	}

	for i := range weights {
		weights[i] /= sum
	}
	return weights, nil
}
