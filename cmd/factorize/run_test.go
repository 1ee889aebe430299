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

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/factorize/base/log"
	"github.com/gorse-io/factorize/base/progress"
	"github.com/gorse-io/factorize/config"
	"github.com/gorse-io/factorize/dataset"
	"github.com/gorse-io/factorize/model/mf"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRatings = `user_id,item_id,rating
0,0,5.0
0,1,3.0
1,0,4.0
1,1,2.0
2,2,1.0
2,x,1.0
`

func newTestRunner(t *testing.T) (*runner, *bytes.Buffer) {
	log.CloseLogger()
	dir := t.TempDir()
	path := filepath.Join(dir, "ratings.csv")
	require.NoError(t, os.WriteFile(path, []byte(testRatings), 0644))
	conf := config.GetDefaultConfig()
	conf.Data.RatingsPath = path
	conf.Training.NFactors = 2
	conf.Training.NEpochs = 5
	conf.Output.Dir = filepath.Join(dir, "output")
	conf.Output.ExampleUsers = []int{0, 2, 9}
	var stdout bytes.Buffer
	return &runner{conf: conf, stdout: &stdout, progress: io.Discard}, &stdout
}

func readLines(t *testing.T, path string) []string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRun(t *testing.T) {
	r, stdout := newTestRunner(t)
	r.conf.Output.DumpFactors = true
	require.NoError(t, r.Run(context.Background()))
	dir := r.conf.Output.Dir

	for _, name := range []string{"sgd", "als"} {
		lines := readLines(t, filepath.Join(dir, name+"_metrics.csv"))
		assert.Len(t, lines, 6)
		assert.Equal(t, "iteration,rmse,mae", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "1,"))
		assert.True(t, strings.HasPrefix(lines[5], "5,"))

		lines = readLines(t, filepath.Join(dir, name+"_time.txt"))
		assert.Len(t, lines, 1)
		assert.True(t, strings.HasPrefix(lines[0], strings.ToUpper(name)+" training time (s): "))
	}

	lines := readLines(t, filepath.Join(dir, "recommendations.csv"))
	require.Len(t, lines, 3)
	assert.Equal(t, "user_id,rec1,rec2,rec3,rec4,rec5", lines[0])
	assert.Len(t, strings.Split(lines[1], ","), 4)
	assert.True(t, strings.HasPrefix(lines[1], "0,"))
	assert.True(t, strings.HasPrefix(lines[2], "2,"))

	assert.Len(t, readLines(t, filepath.Join(dir, "als_user_factors.csv")), 3)
	assert.Len(t, readLines(t, filepath.Join(dir, "als_item_factors.csv")), 3)

	output := stdout.String()
	assert.Contains(t, output, "Training with SGD...")
	assert.Contains(t, output, "Training with ALS...")
	assert.Contains(t, output, "Top 5 recommendations for user 0:")
	assert.NotContains(t, output, "recommendations for user 9")

	roots := r.tracer.List()
	require.Len(t, roots, 1)
	assert.Equal(t, "factorize", roots[0].Tracer)
	assert.Equal(t, "Train", roots[0].Name)
	assert.Equal(t, progress.StatusComplete, roots[0].Status)
	assert.Equal(t, 2, roots[0].Count)
	children := r.span.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "SGD.Fit", children[0].Name)
	assert.Equal(t, "ALS.Fit", children[1].Name)
	for _, child := range children {
		assert.Equal(t, progress.StatusComplete, child.Status)
		assert.Equal(t, 5, child.Count)
		assert.Equal(t, 5, child.Total)
		assert.False(t, child.FinishTime.Before(child.StartTime))
	}
}

func TestRunCanceled(t *testing.T) {
	r, _ := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	roots := r.tracer.List()
	require.Len(t, roots, 1)
	assert.Equal(t, progress.StatusFailed, roots[0].Status)
	assert.NotEmpty(t, roots[0].Error)
	children := r.span.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "SGD.Fit", children[0].Name)
	assert.Equal(t, progress.StatusFailed, children[0].Status)
}

func TestRunMissingFile(t *testing.T) {
	r, _ := newTestRunner(t)
	r.conf.Data.RatingsPath = filepath.Join(t.TempDir(), "missing.csv")
	err := r.Run(context.Background())
	assert.True(t, errors.Is(err, errors.NotFound))
	roots := r.tracer.List()
	require.Len(t, roots, 1)
	assert.Equal(t, progress.StatusFailed, roots[0].Status)
	assert.Empty(t, r.span.Children())
}

func TestRunEmpty(t *testing.T) {
	r, _ := newTestRunner(t)
	require.NoError(t, os.WriteFile(r.conf.Data.RatingsPath, []byte("user_id,item_id,rating\n"), 0644))
	err := r.Run(context.Background())
	assert.ErrorIs(t, err, mf.ErrEmptyInput)
}

func TestRunSQLite(t *testing.T) {
	r, _ := newTestRunner(t)
	ratings, _ := dataset.LoadRatings(r.conf.Data.RatingsPath)
	r.conf.Data.SQLitePath = filepath.Join(t.TempDir(), "ratings.db")
	require.NoError(t, dataset.SaveRatingsToSQLite(r.conf.Data.SQLitePath, r.conf.Data.SQLiteTable, ratings))
	r.conf.Training.Jobs = 2
	require.NoError(t, r.Run(context.Background()))
	lines := readLines(t, filepath.Join(r.conf.Output.Dir, "als_metrics.csv"))
	assert.Len(t, lines, 6)
	_, err := os.Stat(filepath.Join(r.conf.Output.Dir, "als_user_factors.csv"))
	assert.True(t, os.IsNotExist(err))
}
