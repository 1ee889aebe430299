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
	"github.com/gorse-io/factorize/dataset"
	"github.com/gorse-io/factorize/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// SGD fits factor matrices by stochastic gradient descent over ratings in stored
// order. By default the item update reads the user vector after its own update
// in the same step. Set PreUpdateUser to read the vector before the update.
type SGD struct {
	baseMatrixFactorization
	lr            float64
	preUpdateUser bool
}

func NewSGD(params model.Params) *SGD {
	sgd := new(SGD)
	sgd.SetParams(params)
	return sgd
}

// SetParams sets hyper-parameters for the SGD model.
func (sgd *SGD) SetParams(params model.Params) {
	sgd.baseMatrixFactorization.SetParams(params)
	sgd.lr = sgd.Params.GetFloat64(model.Lr, 0.01)
	sgd.preUpdateUser = sgd.Params.GetBool(model.PreUpdateUser, false)
}

// Fit trains on ratings with as many users and items as the dataset has.
func (sgd *SGD) Fit(ctx context.Context, ratings *dataset.Dataset, config *FitConfig) (*FitResult, error) {
	return sgd.fit(ctx, ratings, ratings.CountUsers(), ratings.CountItems(), config)
}

func (sgd *SGD) fit(ctx context.Context, ratings *dataset.Dataset, numUsers, numItems int, config *FitConfig) (*FitResult, error) {
	if err := sgd.validate(ratings, numUsers, numItems); err != nil {
		return nil, errors.Trace(err)
	}
	if sgd.lr < 0 {
		return nil, errors.NotValidf("learning rate %v", sgd.lr)
	}
	log.Logger().Info("fit sgd",
		zap.Int("n_ratings", ratings.Count()),
		zap.Int("n_users", numUsers),
		zap.Int("n_items", numItems),
		zap.Any("params", sgd.GetParams()))
	start := time.Now()
	userFactor, itemFactor := sgd.init(numUsers, numItems)
	result := newFitResult(ratings, userFactor, itemFactor)
	userBuffer := make([]float64, sgd.nFactors)
	decay := 1 - sgd.lr*sgd.reg

	_, span := progress.Start(ctx, "SGD.Fit", sgd.nEpochs)
	for ep := 1; ep <= sgd.nEpochs; ep++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		fitStart := time.Now()
		for _, r := range ratings.GetRatings() {
			userVector := userFactor.Row(int(r.UserId))
			itemVector := itemFactor.Row(int(r.ItemId))
			e := r.Rating - floats.Dot(userVector, itemVector)
			source := userVector
			if sgd.preUpdateUser {
				copy(userBuffer, userVector)
				source = userBuffer
			}
			// p_u <- p_u + lr * (e * q_i - reg * p_u)
			floats.Scale(decay, userVector)
			floats.AddScaled(userVector, sgd.lr*e, itemVector)
			// q_i <- q_i + lr * (e * p_u - reg * q_i)
			floats.Scale(decay, itemVector)
			floats.AddScaled(itemVector, sgd.lr*e, source)
		}
		fitTime := time.Since(fitStart)
		score, err := Evaluate(ratings, userFactor, itemFactor)
		if err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		result.History = append(result.History, score)
		if config.verbose(ep, sgd.nEpochs) {
			log.Logger().Debug(fmt.Sprintf("fit sgd %v/%v", ep, sgd.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.Float64("RMSE", score.RMSE),
				zap.Float64("MAE", score.MAE))
		}
		config.callback(ep, score)
		span.Add(1)
	}
	span.End()
	result.Duration = time.Since(start)

	log.Logger().Info("fit sgd complete",
		zap.Float64("RMSE", result.History.Last().RMSE),
		zap.Float64("MAE", result.History.Last().MAE),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// TrainSGD trains fresh factor matrices with numUsers and numItems rows.
func TrainSGD(ctx context.Context, ratings *dataset.Dataset, numUsers, numItems, k int,
	reg, lr float64, iterations int, seed int64) (*FitResult, error) {
	sgd := NewSGD(model.Params{
		model.NFactors:    k,
		model.Reg:         reg,
		model.Lr:          lr,
		model.NEpochs:     iterations,
		model.RandomState: seed,
	})
	return sgd.fit(ctx, ratings, numUsers, numItems, nil)
}
