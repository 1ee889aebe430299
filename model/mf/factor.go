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
	"bufio"
	"io"

	"github.com/gorse-io/factorize/base"
	"github.com/juju/errors"
)

// FactorMatrix holds one latent vector of fixed length per entity.
type FactorMatrix struct {
	data [][]float64
	cols int
}

// NewFactorMatrix creates a zero matrix with rows latent vectors of cols coordinates.
func NewFactorMatrix(rows, cols int) *FactorMatrix {
	data := make([][]float64, rows)
	for i := range data {
		data[i] = make([]float64, cols)
	}
	return &FactorMatrix{data: data, cols: cols}
}

// NewFactorMatrixFrom wraps rows without copying. All rows must have the same length.
func NewFactorMatrixFrom(cols int, data [][]float64) (*FactorMatrix, error) {
	for i, row := range data {
		if len(row) != cols {
			return nil, errors.NotValidf("row %d with %d coordinates, expect %d", i, len(row), cols)
		}
	}
	return &FactorMatrix{data: data, cols: cols}, nil
}

func (m *FactorMatrix) Rows() int {
	return len(m.data)
}

func (m *FactorMatrix) Cols() int {
	return m.cols
}

// Row returns the latent vector of an entity. The slice must not be modified.
func (m *FactorMatrix) Row(i int) []float64 {
	return m.data[i]
}

// Preview copies the first n rows, or all rows if there are fewer.
func (m *FactorMatrix) Preview(n int) [][]float64 {
	n = max(0, min(n, len(m.data)))
	preview := make([][]float64, n)
	for i := range preview {
		preview[i] = append([]float64(nil), m.data[i]...)
	}
	return preview
}

// WriteCSV writes one line of comma separated coordinates per entity.
func (m *FactorMatrix) WriteCSV(w io.Writer) error {
	writer := bufio.NewWriter(w)
	for _, row := range m.data {
		if _, err := writer.WriteString(base.JoinFloats(row, ",") + "\n"); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(writer.Flush())
}
