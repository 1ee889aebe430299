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
	"testing"

	"github.com/gorse-io/factorize/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDataset(t *testing.T, ratings ...dataset.Rating) *dataset.Dataset {
	dataSet := dataset.NewDataset(len(ratings))
	for _, r := range ratings {
		require.NoError(t, dataSet.Add(r.UserId, r.ItemId, r.Rating))
	}
	return dataSet
}

func newTestFactor(t *testing.T, data ...[]float64) *FactorMatrix {
	cols := 0
	if len(data) > 0 {
		cols = len(data[0])
	}
	m, err := NewFactorMatrixFrom(cols, data)
	require.NoError(t, err)
	return m
}

func TestEvaluate(t *testing.T) {
	ratings := newTestDataset(t,
		dataset.Rating{UserId: 0, ItemId: 0, Rating: 5},
		dataset.Rating{UserId: 0, ItemId: 1, Rating: 3},
		dataset.Rating{UserId: 1, ItemId: 0, Rating: 4},
		dataset.Rating{UserId: 1, ItemId: 1, Rating: 2})
	userFactor := newTestFactor(t, []float64{1, 0}, []float64{0, 1})
	itemFactor := newTestFactor(t, []float64{4, 4}, []float64{3, 1})
	// errors: 1, 0, 0, 1
	score, err := Evaluate(ratings, userFactor, itemFactor)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.5), score.RMSE, 1e-12)
	assert.InDelta(t, 0.5, score.MAE, 1e-12)

	rmse, err := RMSE(ratings, userFactor, itemFactor)
	require.NoError(t, err)
	assert.Equal(t, score.RMSE, rmse)
	mae, err := MAE(ratings, userFactor, itemFactor)
	require.NoError(t, err)
	assert.Equal(t, score.MAE, mae)

	// evaluating twice yields identical results
	again, err := Evaluate(ratings, userFactor, itemFactor)
	require.NoError(t, err)
	assert.Equal(t, score, again)
}

func TestEvaluateEqualMagnitude(t *testing.T) {
	ratings := newTestDataset(t,
		dataset.Rating{UserId: 0, ItemId: 0, Rating: 2.5},
		dataset.Rating{UserId: 0, ItemId: 1, Rating: 0.5},
		dataset.Rating{UserId: 1, ItemId: 0, Rating: 1.5})
	userFactor := newTestFactor(t, []float64{1}, []float64{1})
	itemFactor := newTestFactor(t, []float64{2}, []float64{1})
	score, err := Evaluate(ratings, userFactor, itemFactor)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score.RMSE, 1e-12)
	assert.InDelta(t, score.RMSE, score.MAE, 1e-12)
}

func TestEvaluateNonNegative(t *testing.T) {
	ratings := newTestDataset(t,
		dataset.Rating{UserId: 0, ItemId: 0, Rating: -3},
		dataset.Rating{UserId: 1, ItemId: 1, Rating: 7},
		dataset.Rating{UserId: 1, ItemId: 0, Rating: 0})
	userFactor := newTestFactor(t, []float64{-1, 2}, []float64{0.5, -0.5})
	itemFactor := newTestFactor(t, []float64{3, 1}, []float64{-2, 4})
	score, err := Evaluate(ratings, userFactor, itemFactor)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score.RMSE, 0.0)
	assert.GreaterOrEqual(t, score.MAE, 0.0)
}

func TestEvaluateEmpty(t *testing.T) {
	ratings := dataset.NewDataset(0)
	userFactor := NewFactorMatrix(2, 2)
	itemFactor := NewFactorMatrix(2, 2)
	_, err := RMSE(ratings, userFactor, itemFactor)
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = MAE(ratings, userFactor, itemFactor)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEvaluateOutOfRange(t *testing.T) {
	ratings := newTestDataset(t,
		dataset.Rating{UserId: 0, ItemId: 0, Rating: 1},
		dataset.Rating{UserId: 2, ItemId: 0, Rating: 1})
	_, err := Evaluate(ratings, NewFactorMatrix(2, 2), NewFactorMatrix(1, 2))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	ratings = newTestDataset(t, dataset.Rating{UserId: 0, ItemId: 1, Rating: 1})
	_, err = Evaluate(ratings, NewFactorMatrix(1, 2), NewFactorMatrix(1, 2))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = Evaluate(ratings, NewFactorMatrix(1, 2), NewFactorMatrix(2, 3))
	assert.True(t, errors.Is(err, errors.NotValid))
}
