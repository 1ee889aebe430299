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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorse-io/factorize/base/log"
	"github.com/gorse-io/factorize/base/progress"
	"github.com/gorse-io/factorize/config"
	"github.com/gorse-io/factorize/dataset"
	"github.com/gorse-io/factorize/model/mf"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// runner trains both models and writes their outputs.
type runner struct {
	conf *config.Config
	// stdout receives reports, progress receives progress bars.
	stdout   io.Writer
	progress io.Writer
	tracer   *progress.Tracer
	span     *progress.Span
}

func (r *runner) Run(ctx context.Context) (err error) {
	r.tracer = progress.NewTracer("factorize")
	ctx, r.span = r.tracer.Start(ctx, "Train", 2)
	defer func() {
		if err != nil {
			progress.Fail(ctx, err)
		} else {
			r.span.End()
		}
		r.logProgress()
	}()

	ratings, err := r.loadRatings()
	if err != nil {
		return errors.Trace(err)
	}
	if ratings.Count() == 0 {
		return errors.Annotate(mf.ErrEmptyInput, "no rating loaded")
	}
	if err = os.MkdirAll(r.conf.Output.Dir, os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	params := r.conf.Training.Params()

	fmt.Fprintln(r.stdout, "Training with SGD...")
	sgd, err := r.fit(ctx, "SGD", mf.NewSGD(params), ratings)
	if err != nil {
		return errors.Annotate(err, "train sgd")
	}
	r.span.Add(1)
	fmt.Fprintln(r.stdout, "Training with ALS...")
	als, err := r.fit(ctx, "ALS", mf.NewALS(params), ratings)
	if err != nil {
		return errors.Annotate(err, "train als")
	}
	r.span.Add(1)
	if err = r.renderScores([]string{"SGD", "ALS"}, []*mf.FitResult{sgd, als}); err != nil {
		return errors.Trace(err)
	}

	if r.conf.Output.PreviewRows > 0 {
		if err = r.renderPreview("User factors (ALS)", als.UserFactor); err != nil {
			return errors.Trace(err)
		}
		if err = r.renderPreview("Item factors (ALS)", als.ItemFactor); err != nil {
			return errors.Trace(err)
		}
	}
	if err = r.recommend(als); err != nil {
		return errors.Trace(err)
	}
	if r.conf.Output.DumpFactors {
		if err = r.writeFile("als_user_factors.csv", als.UserFactor.WriteCSV); err != nil {
			return errors.Trace(err)
		}
		if err = r.writeFile("als_item_factors.csv", als.ItemFactor.WriteCSV); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// logProgress logs the status of the run and of every training run in it.
func (r *runner) logProgress() {
	for _, p := range append(r.tracer.List(), r.span.Children()...) {
		log.Logger().Info("progress",
			zap.String("name", p.Name),
			zap.String("status", string(p.Status)),
			zap.Int("count", p.Count),
			zap.Int("total", p.Total),
			zap.String("error", p.Error),
			zap.Time("start_time", p.StartTime),
			zap.Time("finish_time", p.FinishTime))
	}
}

// loadRatings reads ratings from SQLite if configured, otherwise from CSV.
// Malformed rows are skipped. A missing source is fatal.
func (r *runner) loadRatings() (*dataset.Dataset, error) {
	if r.conf.Data.SQLitePath != "" {
		ratings, err := dataset.LoadRatingsFromSQLite(r.conf.Data.SQLitePath, r.conf.Data.SQLiteTable)
		return ratings, errors.Trace(err)
	}
	ratings, err := dataset.LoadRatings(r.conf.Data.RatingsPath)
	if errors.Is(err, errors.NotValid) {
		log.Logger().Warn("skip malformed ratings", zap.Error(err))
		return ratings, nil
	}
	return ratings, errors.Trace(err)
}

func (r *runner) fit(ctx context.Context, name string, m mf.Model, ratings *dataset.Dataset) (*mf.FitResult, error) {
	bar := progressbar.NewOptions(r.conf.Training.NEpochs,
		progressbar.OptionSetWriter(r.progress),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())
	fitConfig := mf.NewFitConfig().
		SetJobs(r.conf.Training.Jobs).
		SetVerbose(r.conf.Training.Verbose).
		SetCallback(func(iteration int, score mf.Score) {
			bar.Describe(fmt.Sprintf("%s RMSE=%.4f", name, score.RMSE))
			_ = bar.Add(1)
		})
	result, err := m.Fit(ctx, ratings, fitConfig)
	_ = bar.Finish()
	if err != nil {
		return nil, errors.Trace(err)
	}
	prefix := strings.ToLower(name)
	if err = r.writeFile(prefix+"_metrics.csv", result.History.WriteCSV); err != nil {
		return nil, errors.Trace(err)
	}
	if err = r.writeFile(prefix+"_time.txt", func(w io.Writer) error {
		return mf.WriteDuration(w, name, result.Duration)
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return result, nil
}

func (r *runner) renderScores(names []string, results []*mf.FitResult) error {
	table := tablewriter.NewWriter(r.stdout)
	table.Header("Model", "RMSE", "MAE", "Time")
	for i, name := range names {
		score := results[i].History.Last()
		if err := table.Append([]string{
			name,
			strconv.FormatFloat(score.RMSE, 'g', 6, 64),
			strconv.FormatFloat(score.MAE, 'g', 6, 64),
			results[i].Duration.String(),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func (r *runner) renderPreview(title string, m *mf.FactorMatrix) error {
	fmt.Fprintf(r.stdout, "%s, first %d of %d rows:\n", title, min(r.conf.Output.PreviewRows, m.Rows()), m.Rows())
	table := tablewriter.NewWriter(r.stdout)
	header := append([]string{"#"}, lo.Times(m.Cols(), func(i int) string {
		return fmt.Sprintf("f%d", i)
	})...)
	table.Header(lo.ToAnySlice(header)...)
	for i, row := range m.Preview(r.conf.Output.PreviewRows) {
		cells := lo.Map(row, func(v float64, _ int) string {
			return strconv.FormatFloat(v, 'f', 4, 64)
		})
		if err := table.Append(append([]string{strconv.Itoa(i)}, cells...)); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

// recommend prints top n items for every example user and writes them to
// recommendations.csv. Unknown users are skipped.
func (r *runner) recommend(result *mf.FitResult) error {
	topN := r.conf.Output.TopN
	var lines []string
	header := append([]string{"user_id"}, lo.Times(topN, func(i int) string {
		return fmt.Sprintf("rec%d", i+1)
	})...)
	lines = append(lines, strings.Join(header, ","))
	for _, userId := range r.conf.Output.ExampleUsers {
		items, err := result.Recommend(int32(userId), topN)
		if errors.Is(err, mf.ErrIndexOutOfRange) {
			log.Logger().Warn("skip unknown user", zap.Int("user_id", userId))
			continue
		} else if err != nil {
			return errors.Trace(err)
		}
		if !result.IsUserPredictable(int32(userId)) {
			log.Logger().Warn("user without ratings", zap.Int("user_id", userId))
		}
		ids := lo.Map(items, func(item int32, _ int) string {
			return strconv.Itoa(int(item))
		})
		fmt.Fprintf(r.stdout, "Top %d recommendations for user %d: %s\n", topN, userId, strings.Join(ids, " "))
		lines = append(lines, strconv.Itoa(userId)+","+strings.Join(ids, ","))
	}
	return r.writeFile("recommendations.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
		return errors.Trace(err)
	})
}

func (r *runner) writeFile(name string, write func(w io.Writer) error) error {
	path := filepath.Join(r.conf.Output.Dir, name)
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	if err = write(file); err != nil {
		_ = file.Close()
		return errors.Annotatef(err, "write %s", path)
	}
	log.Logger().Info("write file", zap.String("path", path))
	return errors.Trace(file.Close())
}
