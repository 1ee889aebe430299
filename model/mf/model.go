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
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/factorize/dataset"
	"github.com/gorse-io/factorize/model"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
)

type FitConfig struct {
	Jobs    int
	Verbose int
	// Callback is invoked after every iteration with the 1-based iteration number.
	Callback func(iteration int, score Score)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
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

func (config *FitConfig) SetCallback(callback func(iteration int, score Score)) *FitConfig {
	config.Callback = callback
	return config
}

func (config *FitConfig) jobs() int {
	if config == nil || config.Jobs < 1 {
		return 1
	}
	return config.Jobs
}

func (config *FitConfig) verbose(iteration, nEpochs int) bool {
	if config == nil || config.Verbose <= 0 {
		return iteration == nEpochs
	}
	return iteration%config.Verbose == 0 || iteration == nEpochs
}

func (config *FitConfig) callback(iteration int, score Score) {
	if config != nil && config.Callback != nil {
		config.Callback(iteration, score)
	}
}

// Model is a matrix factorization model trained on explicit ratings.
type Model interface {
	model.Model
	// Fit trains fresh factor matrices on ratings.
	Fit(ctx context.Context, ratings *dataset.Dataset, config *FitConfig) (*FitResult, error)
}

// FitResult is the outcome of a training run. Factor matrices are read-only.
type FitResult struct {
	UserFactor *FactorMatrix
	ItemFactor *FactorMatrix
	// UserPredictable marks users with at least one rating.
	UserPredictable *bitset.BitSet
	// ItemPredictable marks items with at least one rating.
	ItemPredictable *bitset.BitSet
	History         History
	Duration        time.Duration
}

func newFitResult(ratings *dataset.Dataset, userFactor, itemFactor *FactorMatrix) *FitResult {
	result := &FitResult{
		UserFactor:      userFactor,
		ItemFactor:      itemFactor,
		UserPredictable: bitset.New(uint(userFactor.Rows())),
		ItemPredictable: bitset.New(uint(itemFactor.Rows())),
	}
	for _, r := range ratings.GetRatings() {
		result.UserPredictable.Set(uint(r.UserId))
		result.ItemPredictable.Set(uint(r.ItemId))
	}
	return result
}

// IsUserPredictable returns false if user has no rating and its latent vector never be fitted to data.
func (r *FitResult) IsUserPredictable(userId int32) bool {
	if userId < 0 || int(userId) >= r.UserFactor.Rows() {
		return false
	}
	return r.UserPredictable.Test(uint(userId))
}

// IsItemPredictable returns false if item has no rating and its latent vector never be fitted to data.
func (r *FitResult) IsItemPredictable(itemId int32) bool {
	if itemId < 0 || int(itemId) >= r.ItemFactor.Rows() {
		return false
	}
	return r.ItemPredictable.Test(uint(itemId))
}

// Predict the rating given by a user to an item.
func (r *FitResult) Predict(userId, itemId int32) (float64, error) {
	if userId < 0 || int(userId) >= r.UserFactor.Rows() {
		return 0, errors.Annotatef(ErrIndexOutOfRange, "user id %d", userId)
	}
	if itemId < 0 || int(itemId) >= r.ItemFactor.Rows() {
		return 0, errors.Annotatef(ErrIndexOutOfRange, "item id %d", itemId)
	}
	return floats.Dot(r.UserFactor.Row(int(userId)), r.ItemFactor.Row(int(itemId))), nil
}

// Recommend returns the top n items for a user. See RecommendTopN.
func (r *FitResult) Recommend(userId int32, n int) ([]int32, error) {
	if userId < 0 || int(userId) >= r.UserFactor.Rows() {
		return nil, errors.Annotatef(ErrIndexOutOfRange, "user id %d", userId)
	}
	return RecommendTopN(r.UserFactor.Row(int(userId)), r.ItemFactor, n)
}

type baseMatrixFactorization struct {
	model.BaseModel
	nFactors int
	nEpochs  int
	reg      float64
	initLow  float64
	initHigh float64
}

func (m *baseMatrixFactorization) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.nFactors = m.Params.GetInt(model.NFactors, 10)
	m.nEpochs = m.Params.GetInt(model.NEpochs, 30)
	m.reg = m.Params.GetFloat64(model.Reg, 0.1)
	m.initLow = m.Params.GetFloat64(model.InitLow, 0)
	m.initHigh = m.Params.GetFloat64(model.InitHigh, 1)
}

func (m *baseMatrixFactorization) validate(ratings *dataset.Dataset, numUsers, numItems int) error {
	if m.nFactors <= 0 {
		return errors.NotValidf("number of factors %d", m.nFactors)
	}
	if m.nEpochs <= 0 {
		return errors.NotValidf("number of epochs %d", m.nEpochs)
	}
	if m.reg < 0 {
		return errors.NotValidf("regularization %v", m.reg)
	}
	if m.initHigh < m.initLow {
		return errors.NotValidf("initial range [%v, %v)", m.initLow, m.initHigh)
	}
	if ratings == nil || ratings.Count() == 0 {
		return errors.Trace(ErrEmptyInput)
	}
	return errors.Trace(checkRatings(ratings, numUsers, numItems))
}

// init draws users first and then items from a generator seeded by RandomState.
func (m *baseMatrixFactorization) init(numUsers, numItems int) (*FactorMatrix, *FactorMatrix) {
	rng := m.GetRandomGenerator()
	userFactor := &FactorMatrix{data: rng.UniformMatrix(numUsers, m.nFactors, m.initLow, m.initHigh), cols: m.nFactors}
	itemFactor := &FactorMatrix{data: rng.UniformMatrix(numItems, m.nFactors, m.initLow, m.initHigh), cols: m.nFactors}
	return userFactor, itemFactor
}
