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
	"github.com/gorse-io/factorize/common/heap"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
)

// RecommendTopN ranks items by the dot product with a user vector and returns the
// indices of the top n items. Ties are broken by descending item index. Fewer than
// n indices are returned if there are fewer items.
func RecommendTopN(user []float64, items *FactorMatrix, n int) ([]int32, error) {
	if len(user) != items.Cols() {
		return nil, errors.NotValidf("user vector with %d coordinates, expect %d", len(user), items.Cols())
	}
	filter := heap.NewTopKFilter[int32, float64](n)
	for i := 0; i < items.Rows(); i++ {
		filter.Push(int32(i), floats.Dot(user, items.Row(i)))
	}
	return filter.PopAllValues(), nil
}
