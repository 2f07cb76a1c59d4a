// Package calibration fits and applies the regression that maps eye features
// to normalized gaze coordinates, and runs the multi-point calibration
// procedure that produces its training data.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInsufficientData is returned when fewer than MinSamples samples are available.
	ErrInsufficientData = errors.New("insufficient calibration data")
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("calibration model not fitted")
	// ErrFeatureMismatch is returned when feature vectors differ in length.
	ErrFeatureMismatch = errors.New("feature vector length mismatch")
)

// MinSamples is the minimum number of calibration samples Fit accepts.
const MinSamples = 5

const (
	// ModelKind identifies the serialized model family.
	ModelKind = "polynomial_ridge"
	// ModelVersion is the serialized parameter layout version.
	ModelVersion = 1
)

// Sample pairs one feature vector with its known on-screen target.
type Sample struct {
	Features []float64 `json:"features"`
	TargetX  float64   `json:"target_x"`
	TargetY  float64   `json:"target_y"`
}

// RegressorParams is one fitted axis: standardization plus ridge weights.
type RegressorParams struct {
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// Params is the portable serialized form of a fitted model.
type Params struct {
	Kind           string          `json:"kind"`
	Version        int             `json:"version"`
	Degree         int             `json:"degree"`
	Regularization float64         `json:"regularization"`
	X              RegressorParams `json:"x_params"`
	Y              RegressorParams `json:"y_params"`
}

type regressor struct {
	mean, scale []float64
	coef        []float64
	intercept   float64
}

// Model is a pair of polynomial ridge regressions, one per screen axis.
// A fitted model is read-only and safe to share between goroutines.
type Model struct {
	degree int
	alpha  float64

	terms  [][]int
	x, y   *regressor
	fitted bool
}

// NewModel creates an unfitted model.
func NewModel(degree int, alpha float64) *Model {
	if degree < 1 {
		degree = 1
	}
	return &Model{degree: degree, alpha: alpha}
}

// Degree returns the polynomial degree.
func (m *Model) Degree() int { return m.degree }

// Alpha returns the ridge regularization strength.
func (m *Model) Alpha() float64 { return m.alpha }

// Fitted reports whether Predict can be called.
func (m *Model) Fitted() bool { return m.fitted }

// NumFeatures returns the feature vector length the model was fitted on.
func (m *Model) NumFeatures() int {
	if !m.fitted {
		return 0
	}
	return len(m.x.mean)
}

// Fit trains both regressors and returns the RMS Euclidean training error of
// the unclamped predictions. On error the model is left unfitted.
func (m *Model) Fit(samples []Sample) (float64, error) {
	m.fitted = false
	m.x, m.y = nil, nil

	if len(samples) < MinSamples {
		return 0, fmt.Errorf("%w: got %d samples, need %d", ErrInsufficientData, len(samples), MinSamples)
	}

	nf := len(samples[0].Features)
	if nf == 0 {
		return 0, fmt.Errorf("%w: empty feature vector", ErrFeatureMismatch)
	}
	for i, s := range samples {
		if len(s.Features) != nf {
			return 0, fmt.Errorf("%w: sample %d has %d features, expected %d", ErrFeatureMismatch, i, len(s.Features), nf)
		}
	}

	mean, scale := standardization(samples, nf)
	terms := polyTerms(nf, m.degree)

	n, p := len(samples), len(terms)
	design := mat.NewDense(n, p, nil)
	tx := make([]float64, n)
	ty := make([]float64, n)

	z := make([]float64, nf)
	row := make([]float64, 0, p)
	for i, s := range samples {
		standardize(z, s.Features, mean, scale)
		row = expand(row, z, terms)
		design.SetRow(i, row)
		tx[i] = s.TargetX
		ty[i] = s.TargetY
	}

	coefX, icX, err := ridge(design, tx, m.alpha)
	if err != nil {
		return 0, fmt.Errorf("fit x: %w", err)
	}
	coefY, icY, err := ridge(design, ty, m.alpha)
	if err != nil {
		return 0, fmt.Errorf("fit y: %w", err)
	}

	m.terms = terms
	m.x = &regressor{mean: mean, scale: scale, coef: coefX, intercept: icX}
	m.y = &regressor{mean: append([]float64(nil), mean...), scale: append([]float64(nil), scale...), coef: coefY, intercept: icY}
	m.fitted = true

	var sq float64
	for i, s := range samples {
		px, py := m.raw(s.Features, z, row)
		dx, dy := px-tx[i], py-ty[i]
		sq += dx*dx + dy*dy
	}
	return math.Sqrt(sq / float64(n)), nil
}

// Predict maps a feature vector to gaze coordinates clamped to [0,1].
func (m *Model) Predict(features []float64) (float64, float64, error) {
	if !m.fitted {
		return 0, 0, ErrNotFitted
	}
	if len(features) != len(m.x.mean) {
		return 0, 0, fmt.Errorf("%w: got %d, expected %d", ErrFeatureMismatch, len(features), len(m.x.mean))
	}

	x, y := m.raw(features, make([]float64, len(features)), make([]float64, 0, len(m.terms)))
	return clamp01(x), clamp01(y), nil
}

func (m *Model) raw(features, z, row []float64) (float64, float64) {
	return m.x.eval(features, z, row, m.terms), m.y.eval(features, z, row, m.terms)
}

func (r *regressor) eval(features, z, row []float64, terms [][]int) float64 {
	standardize(z, features, r.mean, r.scale)
	row = expand(row, z, terms)
	v := r.intercept
	for i, c := range r.coef {
		v += c * row[i]
	}
	return v
}

// Params returns the serialized parameters of a fitted model.
func (m *Model) Params() (Params, error) {
	if !m.fitted {
		return Params{}, ErrNotFitted
	}
	return Params{
		Kind:           ModelKind,
		Version:        ModelVersion,
		Degree:         m.degree,
		Regularization: m.alpha,
		X:              m.x.params(),
		Y:              m.y.params(),
	}, nil
}

func (r *regressor) params() RegressorParams {
	return RegressorParams{
		Mean:      append([]float64(nil), r.mean...),
		Scale:     append([]float64(nil), r.scale...),
		Coef:      append([]float64(nil), r.coef...),
		Intercept: r.intercept,
	}
}

// FromParams rebuilds a fitted model from serialized parameters.
func FromParams(p Params) (*Model, error) {
	if p.Kind != ModelKind {
		return nil, fmt.Errorf("unsupported model kind %q", p.Kind)
	}
	if p.Version != ModelVersion {
		return nil, fmt.Errorf("unsupported model version %d", p.Version)
	}
	if p.Degree < 1 {
		return nil, fmt.Errorf("invalid model degree %d", p.Degree)
	}

	nf := len(p.X.Mean)
	if nf == 0 || len(p.Y.Mean) != nf {
		return nil, fmt.Errorf("%w: x has %d features, y has %d", ErrFeatureMismatch, nf, len(p.Y.Mean))
	}

	terms := polyTerms(nf, p.Degree)
	x, err := regressorFrom(p.X, nf, len(terms))
	if err != nil {
		return nil, fmt.Errorf("x_params: %w", err)
	}
	y, err := regressorFrom(p.Y, nf, len(terms))
	if err != nil {
		return nil, fmt.Errorf("y_params: %w", err)
	}

	return &Model{
		degree: p.Degree,
		alpha:  p.Regularization,
		terms:  terms,
		x:      x,
		y:      y,
		fitted: true,
	}, nil
}

func regressorFrom(p RegressorParams, nf, nt int) (*regressor, error) {
	if len(p.Scale) != nf {
		return nil, fmt.Errorf("%w: scale has %d entries, expected %d", ErrFeatureMismatch, len(p.Scale), nf)
	}
	if len(p.Coef) != nt {
		return nil, fmt.Errorf("%w: coef has %d entries, expected %d", ErrFeatureMismatch, len(p.Coef), nt)
	}
	for i, s := range p.Scale {
		if s == 0 {
			return nil, fmt.Errorf("scale[%d] is zero", i)
		}
	}
	return &regressor{
		mean:      append([]float64(nil), p.Mean...),
		scale:     append([]float64(nil), p.Scale...),
		coef:      append([]float64(nil), p.Coef...),
		intercept: p.Intercept,
	}, nil
}

// MarshalJSON implements json.Marshaler.
func (m *Model) MarshalJSON() ([]byte, error) {
	p, err := m.Params()
	if err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Model) UnmarshalJSON(data []byte) error {
	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	fitted, err := FromParams(p)
	if err != nil {
		return err
	}
	*m = *fitted
	return nil
}

// standardization returns per-feature means and population standard
// deviations. Zero deviations are replaced with 1.
func standardization(samples []Sample, nf int) (mean, scale []float64) {
	mean = make([]float64, nf)
	scale = make([]float64, nf)
	n := float64(len(samples))

	for _, s := range samples {
		for j, v := range s.Features {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}

	for _, s := range samples {
		for j, v := range s.Features {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func standardize(dst, features, mean, scale []float64) {
	for j, v := range features {
		dst[j] = (v - mean[j]) / scale[j]
	}
}

// ridge solves a ridge regression with an unpenalized intercept by centring
// x and y. It uses the primal normal equations when there are at least as many
// rows as columns and the dual (kernel) form otherwise.
func ridge(x *mat.Dense, y []float64, alpha float64) ([]float64, float64, error) {
	n, p := x.Dims()

	colMean := make([]float64, p)
	for j := 0; j < p; j++ {
		colMean[j] = mat.Sum(x.ColView(j)) / float64(n)
	}
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	xc := mat.NewDense(n, p, nil)
	xc.Apply(func(_, j int, v float64) float64 { return v - colMean[j] }, x)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var w mat.VecDense
	if n >= p {
		var gram mat.SymDense
		gram.SymOuterK(1, xc.T())
		addDiag(&gram, alpha)

		var rhs mat.VecDense
		rhs.MulVec(xc.T(), yc)

		var chol mat.Cholesky
		if ok := chol.Factorize(&gram); !ok {
			return nil, 0, errors.New("normal equations are not positive definite")
		}
		if err := chol.SolveVecTo(&w, &rhs); err != nil {
			return nil, 0, err
		}
	} else {
		var kernel mat.SymDense
		kernel.SymOuterK(1, xc)
		addDiag(&kernel, alpha)

		var chol mat.Cholesky
		if ok := chol.Factorize(&kernel); !ok {
			return nil, 0, errors.New("kernel matrix is not positive definite")
		}
		var dual mat.VecDense
		if err := chol.SolveVecTo(&dual, yc); err != nil {
			return nil, 0, err
		}
		w.MulVec(xc.T(), &dual)
	}

	coef := make([]float64, p)
	intercept := yMean
	for j := 0; j < p; j++ {
		coef[j] = w.AtVec(j)
		intercept -= colMean[j] * coef[j]
	}
	return coef, intercept, nil
}

func addDiag(s *mat.SymDense, alpha float64) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+alpha)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
