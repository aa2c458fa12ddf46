// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlexport writes a dataset to a SQLite database for ad hoc queries.
package sqlexport

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/googlegenomics/paraviewer/internal/site"
)

const schema = `
CREATE TABLE dataset (
	id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	genome TEXT NOT NULL,
	pipeline TEXT NOT NULL
);

CREATE TABLE "rows" (
	position INTEGER PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	chrom TEXT NOT NULL,
	start_pos INTEGER NOT NULL,
	end_pos INTEGER NOT NULL,
	region TEXT NOT NULL,
	sample TEXT NOT NULL,
	kind TEXT NOT NULL,
	copy_number TEXT,
	special_info TEXT,
	family_id TEXT,
	paternal_id TEXT,
	maternal_id TEXT,
	sex TEXT,
	phenotype TEXT,
	image TEXT,
	session TEXT,
	bundles TEXT,
	degraded INTEGER NOT NULL,
	issues TEXT
);

CREATE INDEX rows_region ON "rows" (region);
CREATE INDEX rows_sample ON "rows" (sample);

CREATE TABLE warnings (
	kind TEXT NOT NULL,
	subject TEXT NOT NULL,
	region TEXT NOT NULL,
	message TEXT NOT NULL
);
`

// Write replaces the database at path with the contents of d.  The bundles
// and issues columns hold JSON arrays.
func Write(ctx context.Context, path string, d *site.Dataset) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old database: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO dataset (id, version, genome, pipeline) VALUES (?, ?, ?, ?)`,
		d.ID, d.Version, d.Genome, d.Pipeline); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	rows, err := tx.PrepareContext(ctx, `
		INSERT INTO "rows" (position, key, chrom, start_pos, end_pos, region, sample, kind, copy_number, special_info,
			family_id, paternal_id, maternal_id, sex, phenotype, image, session, bundles, degraded, issues)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare rows: %w", err)
	}
	defer rows.Close()
	for i, r := range d.Rows {
		bundles, err := json.Marshal(r.Bundles)
		if err != nil {
			return fmt.Errorf("encoding bundles of %s: %w", r.Key, err)
		}
		issues, err := json.Marshal(r.Issues)
		if err != nil {
			return fmt.Errorf("encoding issues of %s: %w", r.Key, err)
		}
		if _, err := rows.ExecContext(ctx, i, r.Key, r.Chrom, r.Start, r.End, r.Region, r.Sample, string(r.Kind),
			r.CopyNumber, r.SpecialInfo, r.FamilyID, r.PaternalID, r.MaternalID, r.Sex, r.Phenotype,
			r.Image, r.Session, string(bundles), r.Degraded, string(issues)); err != nil {
			return fmt.Errorf("insert row %s: %w", r.Key, err)
		}
	}

	warnings, err := tx.PrepareContext(ctx, `INSERT INTO warnings (kind, subject, region, message) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare warnings: %w", err)
	}
	defer warnings.Close()
	for _, w := range d.Warnings {
		if _, err := warnings.ExecContext(ctx, w.Kind.String(), w.Subject, w.Region, w.Message); err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
