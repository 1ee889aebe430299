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

package dataset

import (
	"bufio"
	stderrors "errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gorse-io/factorize/base"
	"github.com/gorse-io/factorize/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// LoadRatings loads ratings from a CSV file with a header line followed by
// rows of user_id,item_id,rating.
//
// A missing or unreadable file yields an empty dataset and a NotFound error.
// Malformed rows are skipped. Their NotValid errors are joined and returned
// together with the rows that parsed.
func LoadRatings(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return NewDataset(0), errors.NewNotFound(err, "ratings file "+path)
	}
	defer file.Close()
	dataset, err := ReadRatings(file)
	if err != nil {
		return dataset, errors.Annotatef(err, "load ratings from %s", path)
	}
	stats := dataset.Stats()
	log.Logger().Info("load ratings",
		zap.String("path", path),
		zap.Int("n_ratings", stats.Ratings),
		zap.Int("n_users", stats.Users),
		zap.Int("n_items", stats.Items),
		zap.Float64("density", stats.Density))
	return dataset, nil
}

// ReadRatings reads ratings in CSV format from a reader. See LoadRatings.
func ReadRatings(r io.Reader) (*Dataset, error) {
	dataset := NewDataset(0)
	var recordErrs []error
	scanner := bufio.NewScanner(r)
	err := base.ReadLines(scanner, ",", func(lineNumber int, fields []string) bool {
		// skip header
		if lineNumber == 0 {
			return true
		}
		// skip blank lines
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			return true
		}
		if err := parseRating(dataset, fields); err != nil {
			recordErrs = append(recordErrs, errors.Annotatef(err, "line %d", lineNumber+1))
		}
		return true
	})
	if err != nil {
		return dataset, errors.Trace(err)
	}
	if len(recordErrs) > 0 {
		log.Logger().Warn("skip malformed ratings", zap.Int("n_errors", len(recordErrs)))
		return dataset, stderrors.Join(recordErrs...)
	}
	return dataset, nil
}

func parseRating(dataset *Dataset, fields []string) error {
	if len(fields) < 3 {
		return errors.NotValidf("record %q with %d fields", strings.Join(fields, ","), len(fields))
	}
	fields = lo.Map(fields[:3], func(field string, _ int) string {
		return strings.TrimSpace(field)
	})
	userId, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return errors.NotValidf("user id %q", fields[0])
	}
	itemId, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return errors.NotValidf("item id %q", fields[1])
	}
	rating, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return errors.NotValidf("rating %q", fields[2])
	}
	return dataset.Add(int32(userId), int32(itemId), rating)
}
