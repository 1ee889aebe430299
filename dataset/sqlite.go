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
	"database/sql"
	"fmt"
	"regexp"

	"github.com/gorse-io/factorize/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadRatingsFromSQLite loads ratings from the columns user_id, item_id and rating
// of a table in a SQLite database. Rows are read in rowid order.
func LoadRatingsFromSQLite(path, table string) (*Dataset, error) {
	if !tableNamePattern.MatchString(table) {
		return NewDataset(0), errors.NotValidf("table name %q", table)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return NewDataset(0), errors.Trace(err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		return NewDataset(0), errors.NewNotFound(err, "sqlite database "+path)
	}
	rows, err := db.Query(fmt.Sprintf("SELECT user_id, item_id, rating FROM %s ORDER BY rowid", table))
	if err != nil {
		return NewDataset(0), errors.Annotatef(err, "query ratings from %s", table)
	}
	defer rows.Close()
	dataset := NewDataset(0)
	for rows.Next() {
		var (
			userId int32
			itemId int32
			rating float64
		)
		if err = rows.Scan(&userId, &itemId, &rating); err != nil {
			return dataset, errors.Trace(err)
		}
		if err = dataset.Add(userId, itemId, rating); err != nil {
			return dataset, errors.Trace(err)
		}
	}
	if err = rows.Err(); err != nil {
		return dataset, errors.Trace(err)
	}
	log.Logger().Info("load ratings from sqlite",
		zap.String("path", path),
		zap.String("table", table),
		zap.Int("n_ratings", dataset.Count()))
	return dataset, nil
}

// SaveRatingsToSQLite writes ratings into a table, creating it if needed.
func SaveRatingsToSQLite(path, table string, dataset *Dataset) error {
	if !tableNamePattern.MatchString(table) {
		return errors.NotValidf("table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Trace(err)
	}
	defer db.Close()
	if _, err = db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	user_id INTEGER NOT NULL,
	item_id INTEGER NOT NULL,
	rating REAL NOT NULL
);`, table)); err != nil {
		return errors.Trace(err)
	}
	tx, err := db.Begin()
	if err != nil {
		return errors.Trace(err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (user_id, item_id, rating) VALUES (?, ?, ?)", table))
	if err != nil {
		_ = tx.Rollback()
		return errors.Trace(err)
	}
	defer stmt.Close()
	for _, r := range dataset.GetRatings() {
		if _, err = stmt.Exec(r.UserId, r.ItemId, r.Rating); err != nil {
			_ = tx.Rollback()
			return errors.Trace(err)
		}
	}
	return errors.Trace(tx.Commit())
}
