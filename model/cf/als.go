// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cf

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gorse-io/als/base"
	"github.com/gorse-io/als/base/log"
	"github.com/gorse-io/als/base/progress"
	"github.com/gorse-io/als/common/blas"
	"github.com/gorse-io/als/common/floats"
	"github.com/gorse-io/als/common/parallel"
	"github.com/gorse-io/als/model"
	"github.com/gorse-io/als/sparse"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Feedback int

const (
	FeedbackImplicit Feedback = iota
	FeedbackExplicit
)

func ParseFeedback(s string) (Feedback, error) {
	switch s {
	case "implicit":
		return FeedbackImplicit, nil
	case "explicit":
		return FeedbackExplicit, nil
	default:
		return 0, errors.NotValidf("feedback %q", s)
	}
}

func (f Feedback) String() string {
	return lo.Ternary(f == FeedbackExplicit, "explicit", "implicit")
}

type Solver int

const (
	SolverConjugateGradient Solver = iota
	SolverCholesky
)

func ParseSolver(s string) (Solver, error) {
	switch s {
	case "conjugate_gradient":
		return SolverConjugateGradient, nil
	case "cholesky":
		return SolverCholesky, nil
	default:
		return 0, errors.NotValidf("solver %q", s)
	}
}

func (s Solver) String() string {
	return lo.Ternary(s == SolverCholesky, "cholesky", "conjugate_gradient")
}

type FitConfig struct {
	Jobs    int
	Verbose int
	TopK    int
	// Validation holds the relevant item indices of every user. Scorers are
	// evaluated every Verbose iterations when it is set.
	Validation  [][]int32
	Scorers     []Scorer
	OnIteration func(TraceRecord)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 1,
		TopK:    10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetTopK(topK int) *FitConfig {
	config.TopK = topK
	return config
}

func (config *FitConfig) SetValidation(targets [][]int32, scorers ...Scorer) *FitConfig {
	config.Validation = targets
	config.Scorers = scorers
	return config
}

func (config *FitConfig) SetOnIteration(f func(TraceRecord)) *FitConfig {
	config.OnIteration = f
	return config
}

// ALS factorizes a user × item matrix with alternating least squares. Implicit
// feedback follows the weighted objective of Hu, Koren and Volinsky and is
// solved by Cholesky or conjugate gradient. Explicit feedback solves a ridge
// regression over the observed entries of every row and column.
//
// T selects the precision. Explicit feedback requires float64.
type ALS[T floats.Float] struct {
	model.BaseModel
	// Hyper parameters
	nFactors      int
	nEpochs       int
	cgSteps       int
	reg           float64
	initStdDev    float64
	tol           float64
	feedback      Feedback
	solver        Solver
	nonNegative   bool
	allowNegative bool
	paramErr      error
	// Model parameters
	components floats.Matrix[T] // item factors, one item per row
	itemGram   []T              // YᵀY + λI of the components
	preprocess sparse.Preprocessor[T]
	state      State
}

// NewALS creates an ALS model.
func NewALS[T floats.Float](params model.Params) *ALS[T] {
	als := &ALS[T]{preprocess: sparse.Identity[T]{}}
	als.SetParams(params)
	return als
}

// SetParams sets hyper-parameters for the ALS model. Invalid values are
// reported by the next fit.
func (als *ALS[T]) SetParams(params model.Params) {
	als.BaseModel.SetParams(params)
	als.nFactors = als.Params.GetInt(model.NFactors, 10)
	als.nEpochs = als.Params.GetInt(model.NEpochs, 10)
	als.cgSteps = als.Params.GetInt(model.CGSteps, 3)
	als.reg = als.Params.GetFloat64(model.Reg, 0.01)
	als.initStdDev = als.Params.GetFloat64(model.InitStdDev, 0.01)
	als.tol = als.Params.GetFloat64(model.ConvergenceTol, 0.001)
	als.nonNegative = als.Params.GetBool(model.NonNegative, false)
	als.allowNegative = als.Params.GetBool(model.AllowNegative, false)
	als.paramErr = nil
	als.itemGram = nil
	var err error
	if als.feedback, err = ParseFeedback(als.Params.GetString(model.Feedback, "implicit")); err != nil {
		als.paramErr = err
	}
	if als.solver, err = ParseSolver(als.Params.GetString(model.Solver, "conjugate_gradient")); err != nil {
		als.paramErr = err
	}
}

// SetPreprocess sets the transform applied to interactions by fit and
// transform. Nil resets it to the identity.
func (als *ALS[T]) SetPreprocess(p sparse.Preprocessor[T]) {
	if p == nil {
		p = sparse.Identity[T]{}
	}
	als.preprocess = p
}

func (als *ALS[T]) Preprocess() sparse.Preprocessor[T] {
	return als.preprocess
}

// Components returns the item factors, one item per row.
func (als *ALS[T]) Components() floats.Matrix[T] {
	return als.components
}

// SetComponents replaces the item factors. The next fit starts from them.
func (als *ALS[T]) SetComponents(components floats.Matrix[T]) error {
	if components.Cols != als.nFactors || len(components.Data) != components.Rows*components.Cols {
		return errors.NotValidf("components of shape (%d, %d) for rank %d", components.Rows, components.Cols, als.nFactors)
	}
	als.components = components
	als.itemGram = nil
	return nil
}

// Clear model weights.
func (als *ALS[T]) Clear() {
	als.components = floats.Matrix[T]{}
	als.itemGram = nil
	als.state = Initializing
}

// Invalid returns true if the model has not been fitted.
func (als *ALS[T]) Invalid() bool {
	return als.components.Empty()
}

// State returns the state reached by the last fit.
func (als *ALS[T]) State() State {
	return als.state
}

func precision[T floats.Float]() string {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return "single"
	}
	return "double"
}

func (als *ALS[T]) validateParams() error {
	if als.paramErr != nil {
		return als.paramErr
	}
	if als.nFactors <= 0 {
		return errors.NotValidf("rank %d", als.nFactors)
	}
	if als.reg < 0 || math.IsNaN(als.reg) {
		return errors.NotValidf("lambda %v", als.reg)
	}
	if als.cgSteps <= 0 {
		return errors.NotValidf("cg_steps %d", als.cgSteps)
	}
	if als.nEpochs <= 0 {
		return errors.NotValidf("n_iter %d", als.nEpochs)
	}
	if als.feedback == FeedbackExplicit && precision[T]() == "single" {
		return errors.NotValidf("single precision with explicit feedback")
	}
	return nil
}

func (als *ALS[T]) validateData(x *sparse.CSR[T]) error {
	if x == nil {
		return errors.NotValidf("nil interactions")
	}
	if als.nonNegative || (als.feedback == FeedbackImplicit && !als.allowNegative) {
		return errors.Trace(x.CheckNonNegative())
	}
	return nil
}

// FitTransform fits item factors to a user × item matrix and returns the user
// factors, one user per row, with the convergence trace. Item factors left by
// a previous fit are the starting point.
func (als *ALS[T]) FitTransform(ctx context.Context, x *sparse.CSR[T], config *FitConfig) (floats.Matrix[T], []TraceRecord, error) {
	defer blas.SetThreads(1)()
	if config == nil {
		config = NewFitConfig()
	}
	als.state = Initializing
	if err := als.validateParams(); err != nil {
		return floats.Matrix[T]{}, nil, errors.Trace(err)
	}
	if err := als.validateData(x); err != nil {
		return floats.Matrix[T]{}, nil, errors.Trace(err)
	}
	if als.feedback == FeedbackExplicit && als.solver == SolverConjugateGradient && als.Params[model.Solver] != nil {
		log.Logger().Warn("conjugate gradient is ignored for explicit feedback, ridge regression is used")
	}
	if als.components.Empty() {
		als.initComponents(x.Cols())
	} else if als.components.Rows != x.Cols() || als.components.Cols != als.nFactors {
		return floats.Matrix[T]{}, nil, errors.NotValidf("components of shape (%d, %d) for %d items and rank %d",
			als.components.Rows, als.components.Cols, x.Cols(), als.nFactors)
	}
	x = als.preprocess.Apply(x)
	xt := x.Transpose()
	users := floats.NewMatrix[T](x.Rows(), als.nFactors)
	jobs := max(config.Jobs, 1)
	works := make([]*workspace[T], jobs)
	for i := range works {
		works[i] = newWorkspace[T](als.nFactors, als.nonNegative)
	}
	var kernel implicitKernel[T]
	userGram := make([]T, als.nFactors*als.nFactors)
	if als.feedback == FeedbackImplicit {
		kernel = newImplicitKernel[T](als.solver, als.cgSteps, als.nonNegative)
		als.itemGram = make([]T, als.nFactors*als.nFactors)
		blas.Gram(als.components, T(als.reg), als.itemGram)
	}
	scorers := config.Scorers
	if config.Validation != nil && len(scorers) == 0 {
		scorers = DefaultScorers(config.TopK)
	}
	verbose := max(config.Verbose, 1)

	log.Logger().Info("fit als",
		zap.Int("n_users", x.Rows()),
		zap.Int("n_items", x.Cols()),
		zap.Int("nnz", x.Nnz()),
		zap.String("precision", precision[T]()),
		zap.String("preprocess", als.preprocess.Name()),
		zap.Any("params", als.GetParams()),
		zap.Int("jobs", jobs))
	_, span := progress.Start(ctx, "ALS.Fit", als.nEpochs)
	als.state = Iterating
	tracker := newConvergenceTracker(als.tol)
	var trace []TraceRecord
	emit := func(record TraceRecord) {
		trace = append(trace, record)
		if config.OnIteration != nil {
			config.OnIteration(record)
		}
	}
	for ep := 1; ep <= als.nEpochs; ep++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return floats.Matrix[T]{}, trace, errors.Trace(err)
		}
		fitStart := time.Now()
		var (
			loss float64
			err  error
		)
		if als.feedback == FeedbackImplicit {
			loss, err = als.alternateImplicit(ctx, kernel, x, xt, users, userGram, works, jobs)
		} else {
			loss, err = als.alternateExplicit(ctx, x, xt, users, works, jobs)
		}
		if err != nil {
			span.Fail(err)
			return floats.Matrix[T]{}, trace, errors.Annotatef(err, "iteration %d", ep)
		}
		fitTime := time.Since(fitStart)
		converged := tracker.update(loss)
		emit(TraceRecord{Iter: ep, Name: "loss", Value: loss})

		fields := []zap.Field{zap.Float64("loss", loss), zap.String("fit_time", fitTime.String())}
		if config.Validation != nil && (ep%verbose == 0 || ep == als.nEpochs || converged) {
			evalStart := time.Now()
			scores, err := Evaluate(ctx, users, als.components, x, config.Validation, config.TopK, jobs, scorers)
			if err != nil {
				span.Fail(err)
				return floats.Matrix[T]{}, trace, errors.Trace(err)
			}
			for i, scorer := range scorers {
				emit(TraceRecord{Iter: ep, Name: scorer.Name, Value: scores[i]})
				fields = append(fields, zap.Float64(scorer.Name, scores[i]))
			}
			fields = append(fields, zap.String("eval_time", time.Since(evalStart).String()))
		}
		if ep%verbose == 0 || converged {
			log.Logger().Debug(fmt.Sprintf("fit als %v/%v", ep, als.nEpochs), fields...)
		}
		span.Add(1)
		if converged {
			als.state = Converged
			break
		}
	}
	if als.state == Iterating {
		als.state = MaxIterReached
	}
	span.End()
	log.Logger().Info("fit als complete",
		zap.String("state", als.state.String()),
		zap.Int("n_iter", span.Count()),
		zap.Float64("loss", tracker.lossPrev))
	return users, trace, nil
}

// Transform computes user factors for new interactions with the item factors
// fixed. It runs a single user pass.
func (als *ALS[T]) Transform(ctx context.Context, x *sparse.CSR[T], config *FitConfig) (floats.Matrix[T], error) {
	defer blas.SetThreads(1)()
	if config == nil {
		config = NewFitConfig()
	}
	if err := als.validateParams(); err != nil {
		return floats.Matrix[T]{}, errors.Trace(err)
	}
	if als.Invalid() {
		return floats.Matrix[T]{}, errors.NotValidf("transform before fit")
	}
	if err := als.validateData(x); err != nil {
		return floats.Matrix[T]{}, errors.Trace(err)
	}
	if x.Cols() != als.components.Rows {
		return floats.Matrix[T]{}, errors.NotValidf("%d items for a model of %d items", x.Cols(), als.components.Rows)
	}
	if als.components.Cols != als.nFactors {
		return floats.Matrix[T]{}, errors.NotValidf("components of rank %d for a model of rank %d", als.components.Cols, als.nFactors)
	}
	x = als.preprocess.Apply(x)
	users := floats.NewMatrix[T](x.Rows(), als.nFactors)
	jobs := max(config.Jobs, 1)
	works := make([]*workspace[T], jobs)
	for i := range works {
		works[i] = newWorkspace[T](als.nFactors, als.nonNegative)
	}
	var err error
	if als.feedback == FeedbackImplicit {
		if als.itemGram == nil {
			als.itemGram = make([]T, als.nFactors*als.nFactors)
			blas.Gram(als.components, T(als.reg), als.itemGram)
		}
		kernel := newImplicitKernel[T](als.solver, als.cgSteps, als.nonNegative)
		_, err = implicitPass(ctx, kernel, x, als.components, users, als.itemGram, works, jobs, false)
	} else {
		err = explicitPass(ctx, &ridgeKernel[T]{reg: als.reg}, x, als.components, users, works, jobs)
	}
	if err != nil {
		return floats.Matrix[T]{}, errors.Trace(err)
	}
	return users, nil
}

func (als *ALS[T]) initComponents(nItems int) {
	components := base.NormalMatrix[T](als.GetRandomGenerator(), nItems, als.nFactors, 0, als.initStdDev)
	if als.nonNegative {
		for i := range components.Data {
			components.Data[i] = floats.Abs(components.Data[i])
		}
	}
	als.components = components
	als.itemGram = nil
}

// alternateImplicit updates users then items and returns the loss per
// observed entry. The loss comes from the item pass plus λ‖X‖², where ‖X‖²
// is read off the trace of the user gram matrix.
func (als *ALS[T]) alternateImplicit(ctx context.Context, kernel implicitKernel[T], x, xt *sparse.CSR[T], users floats.Matrix[T], userGram []T, works []*workspace[T], jobs int) (float64, error) {
	if _, err := implicitPass(ctx, kernel, x, als.components, users, als.itemGram, works, jobs, false); err != nil {
		return 0, errors.Trace(err)
	}
	blas.Gram(users, T(als.reg), userGram)
	loss, err := implicitPass(ctx, kernel, xt, users, als.components, userGram, works, jobs, true)
	if err != nil {
		return 0, errors.Trace(err)
	}
	blas.Gram(als.components, T(als.reg), als.itemGram)
	var trace float64
	for i := 0; i < als.nFactors; i++ {
		trace += float64(userGram[i*als.nFactors+i])
	}
	loss += als.reg * (trace - float64(als.nFactors)*als.reg)
	return loss / float64(max(x.Nnz(), 1)), nil
}

func (als *ALS[T]) alternateExplicit(ctx context.Context, x, xt *sparse.CSR[T], users floats.Matrix[T], works []*workspace[T], jobs int) (float64, error) {
	kernel := &ridgeKernel[T]{reg: als.reg}
	if err := explicitPass(ctx, kernel, x, als.components, users, works, jobs); err != nil {
		return 0, errors.Trace(err)
	}
	if err := explicitPass(ctx, kernel, xt, users, als.components, works, jobs); err != nil {
		return 0, errors.Trace(err)
	}
	residuals := make([]float64, jobs)
	err := parallel.Parallel(ctx, x.Rows(), jobs, func(workerId, userIndex int) error {
		indices, values := x.Row(userIndex)
		residuals[workerId] += explicitResidual(als.components, indices, values, users.Row(userIndex))
		return nil
	})
	if err != nil {
		return 0, errors.Trace(err)
	}
	loss := lo.Sum(residuals) + als.reg*(users.SquaredNorm()+als.components.SquaredNorm())
	return loss / float64(max(x.Nnz(), 1)), nil
}

// implicitPass updates every row of target from the rows of m. Each worker
// writes only the rows of its own jobs.
func implicitPass[T floats.Float](ctx context.Context, kernel implicitKernel[T], m *sparse.CSR[T], fixed, target floats.Matrix[T], gram []T, works []*workspace[T], jobs int, computeLoss bool) (float64, error) {
	losses := make([]float64, jobs)
	err := parallel.Parallel(ctx, m.Rows(), jobs, func(workerId, jobId int) error {
		indices, values := m.Row(jobId)
		dst := target.Row(jobId)
		if err := kernel.update(works[workerId], gram, fixed, indices, values, dst); err != nil {
			return errors.Annotatef(err, "row %d", jobId)
		}
		if computeLoss {
			losses[workerId] += implicitLoss(works[workerId], gram, fixed, indices, values, dst)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Trace(err)
	}
	return lo.Sum(losses), nil
}

func explicitPass[T floats.Float](ctx context.Context, kernel *ridgeKernel[T], m *sparse.CSR[T], fixed, target floats.Matrix[T], works []*workspace[T], jobs int) error {
	err := parallel.Parallel(ctx, m.Rows(), jobs, func(workerId, jobId int) error {
		indices, values := m.Row(jobId)
		if err := kernel.update(works[workerId], fixed, indices, values, target.Row(jobId)); err != nil {
			return errors.Annotatef(err, "row %d", jobId)
		}
		return nil
	})
	return errors.Trace(err)
}
