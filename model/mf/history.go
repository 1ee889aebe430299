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
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/juju/errors"
)

// History holds the score after every iteration of a training run.
type History []Score

// Last returns the score after the final iteration.
func (h History) Last() Score {
	if len(h) == 0 {
		return Score{}
	}
	return h[len(h)-1]
}

// WriteCSV writes a table with header iteration,rmse,mae and 1-based iterations.
func (h History) WriteCSV(w io.Writer) error {
	if _, err := io.WriteString(w, "iteration,rmse,mae\n"); err != nil {
		return errors.Trace(err)
	}
	for i, score := range h {
		if _, err := fmt.Fprintf(w, "%d,%s,%s\n", i+1,
			strconv.FormatFloat(score.RMSE, 'g', -1, 64),
			strconv.FormatFloat(score.MAE, 'g', -1, 64)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// WriteDuration writes a single line with the training time of a model in seconds.
func WriteDuration(w io.Writer, name string, d time.Duration) error {
	_, err := fmt.Fprintf(w, "%s training time (s): %s\n", name, strconv.FormatFloat(d.Seconds(), 'g', -1, 64))
	return errors.Trace(err)
}
