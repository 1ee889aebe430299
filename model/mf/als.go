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

package mf

import (
	"context"
	"fmt"
	"time"

	"github.com/gorse-io/factorize/base/log"
	"github.com/gorse-io/factorize/base/progress"
	"github.com/gorse-io/factorize/common/parallel"
	"github.com/gorse-io/factorize/dataset"
	"github.com/gorse-io/factorize/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ALS fits factor matrices by alternating least squares. Every iteration solves
//
//	(reg * I + \sum_{i \in R_u} q_i q_i^T) p_u = \sum_{i \in R_u} r_{ui} q_i
//
// for every user and then the symmetric system for every item with the new user factors.
type ALS struct {
	baseMatrixFactorization
}

func NewALS(params model.Params) *ALS {
	als := new(ALS)
	als.SetParams(params)
	return als
}

// alsWorkspace is owned by a single worker during a half-sweep.
type alsWorkspace struct {
	a    *mat.SymDense
	b    *mat.VecDense
	chol mat.Cholesky
}

func newALSWorkspace(k int) *alsWorkspace {
	return &alsWorkspace{
		a: mat.NewSymDense(k, nil),
		b: mat.NewVecDense(k, nil),
	}
}

// solve overwrites target with the regularized least squares fit of the ratings
// at positions against the fixed factors of the other side.
func (w *alsWorkspace) solve(target []float64, positions []int32, ratings []dataset.Rating,
	fixed *FactorMatrix, fixedId func(dataset.Rating) int32, reg float64) error {
	k := len(target)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			w.a.SetSym(i, j, 0)
		}
		w.a.SetSym(i, i, reg)
	}
	w.b.Zero()
	for _, pos := range positions {
		r := ratings[pos]
		v := mat.NewVecDense(k, fixed.Row(int(fixedId(r))))
		w.a.SymRankOne(w.a, 1, v)
		w.b.AddScaledVec(w.b, r.Rating, v)
	}
	if ok := w.chol.Factorize(w.a); !ok {
		return errors.Annotate(ErrNumerical, "matrix is not positive definite")
	}
	x := mat.NewVecDense(k, target)
	if err := w.chol.SolveVecTo(x, w.b); err != nil {
		return errors.Annotatef(ErrNumerical, "%v", err)
	}
	return nil
}

// Fit trains on ratings with as many users and items as the dataset has.
func (als *ALS) Fit(ctx context.Context, ratings *dataset.Dataset, config *FitConfig) (*FitResult, error) {
	return als.fit(ctx, ratings, ratings.CountUsers(), ratings.CountItems(), config)
}

func (als *ALS) fit(ctx context.Context, ratings *dataset.Dataset, numUsers, numItems int, config *FitConfig) (*FitResult, error) {
	if err := als.validate(ratings, numUsers, numItems); err != nil {
		return nil, errors.Trace(err)
	}
	jobs := config.jobs()
	log.Logger().Info("fit als",
		zap.Int("n_ratings", ratings.Count()),
		zap.Int("n_users", numUsers),
		zap.Int("n_items", numItems),
		zap.Int("n_jobs", jobs),
		zap.Any("params", als.GetParams()))
	start := time.Now()
	userFactor, itemFactor := als.init(numUsers, numItems)
	result := newFitResult(ratings, userFactor, itemFactor)
	workspaces := make([]*alsWorkspace, jobs)
	for i := range workspaces {
		workspaces[i] = newALSWorkspace(als.nFactors)
	}
	userRatings := ratings.GetUserRatings()
	itemRatings := ratings.GetItemRatings()
	userIdOf := func(r dataset.Rating) int32 { return r.UserId }
	itemIdOf := func(r dataset.Rating) int32 { return r.ItemId }

	ctx, span := progress.Start(ctx, "ALS.Fit", als.nEpochs)
	for ep := 1; ep <= als.nEpochs; ep++ {
		fitStart := time.Now()
		// Update user factors with item factors fixed
		if err := parallel.Parallel(ctx, numUsers, jobs, func(workerId, userId int) error {
			var positions []int32
			if userId < len(userRatings) {
				positions = userRatings[userId]
			}
			if err := workspaces[workerId].solve(userFactor.Row(userId), positions, ratings.GetRatings(),
				itemFactor, itemIdOf, als.reg); err != nil {
				return errors.Annotatef(err, "solve user %d", userId)
			}
			return nil
		}); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		// Update item factors with user factors fixed
		if err := parallel.Parallel(ctx, numItems, jobs, func(workerId, itemId int) error {
			var positions []int32
			if itemId < len(itemRatings) {
				positions = itemRatings[itemId]
			}
			if err := workspaces[workerId].solve(itemFactor.Row(itemId), positions, ratings.GetRatings(),
				userFactor, userIdOf, als.reg); err != nil {
				return errors.Annotatef(err, "solve item %d", itemId)
			}
			return nil
		}); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		fitTime := time.Since(fitStart)
		score, err := Evaluate(ratings, userFactor, itemFactor)
		if err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		result.History = append(result.History, score)
		if config.verbose(ep, als.nEpochs) {
			log.Logger().Debug(fmt.Sprintf("fit als %v/%v", ep, als.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.Float64("RMSE", score.RMSE),
				zap.Float64("MAE", score.MAE))
		}
		config.callback(ep, score)
		span.Add(1)
	}
	span.End()
	result.Duration = time.Since(start)

	log.Logger().Info("fit als complete",
		zap.Float64("RMSE", result.History.Last().RMSE),
		zap.Float64("MAE", result.History.Last().MAE),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// TrainALS trains fresh factor matrices with numUsers and numItems rows.
func TrainALS(ctx context.Context, ratings *dataset.Dataset, numUsers, numItems, k int,
	reg float64, iterations int, seed int64) (*FitResult, error) {
	als := NewALS(model.Params{
		model.NFactors:    k,
		model.Reg:         reg,
		model.NEpochs:     iterations,
		model.RandomState: seed,
	})
	return als.fit(ctx, ratings, numUsers, numItems, nil)
}
