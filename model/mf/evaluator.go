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
	"math"

	"github.com/gorse-io/factorize/dataset"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
)

// Score is the prediction error of a pair of factor matrices.
type Score struct {
	RMSE float64
	MAE  float64
}

// Evaluate computes RMSE and MAE of U[u]·V[i] against every rating in one pass.
func Evaluate(ratings *dataset.Dataset, userFactor, itemFactor *FactorMatrix) (Score, error) {
	if ratings.Count() == 0 {
		return Score{}, errors.Trace(ErrEmptyInput)
	}
	if userFactor.Cols() != itemFactor.Cols() {
		return Score{}, errors.NotValidf("user factor with %d columns and item factor with %d columns",
			userFactor.Cols(), itemFactor.Cols())
	}
	var sumSquare, sumAbs float64
	for _, r := range ratings.GetRatings() {
		if err := checkRating(r, userFactor.Rows(), itemFactor.Rows()); err != nil {
			return Score{}, errors.Trace(err)
		}
		e := r.Rating - floats.Dot(userFactor.Row(int(r.UserId)), itemFactor.Row(int(r.ItemId)))
		sumSquare += e * e
		sumAbs += math.Abs(e)
	}
	n := float64(ratings.Count())
	return Score{
		RMSE: math.Sqrt(sumSquare / n),
		MAE:  sumAbs / n,
	}, nil
}

// RMSE is the root mean squared error over all ratings.
func RMSE(ratings *dataset.Dataset, userFactor, itemFactor *FactorMatrix) (float64, error) {
	score, err := Evaluate(ratings, userFactor, itemFactor)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return score.RMSE, nil
}

// MAE is the mean absolute error over all ratings.
func MAE(ratings *dataset.Dataset, userFactor, itemFactor *FactorMatrix) (float64, error) {
	score, err := Evaluate(ratings, userFactor, itemFactor)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return score.MAE, nil
}

func checkRating(r dataset.Rating, numUsers, numItems int) error {
	if int(r.UserId) >= numUsers {
		return errors.Annotatef(ErrIndexOutOfRange, "user id %d >= %d", r.UserId, numUsers)
	}
	if int(r.ItemId) >= numItems {
		return errors.Annotatef(ErrIndexOutOfRange, "item id %d >= %d", r.ItemId, numItems)
	}
	return nil
}

// checkRatings validates ids of all ratings before a training run.
func checkRatings(ratings *dataset.Dataset, numUsers, numItems int) error {
	for _, r := range ratings.GetRatings() {
		if err := checkRating(r, numUsers, numItems); err != nil {
			return err
		}
	}
	return nil
}
