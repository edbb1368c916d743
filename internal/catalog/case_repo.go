// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kadirpekel/caseflow/internal/caseflowerr"
	"github.com/kadirpekel/caseflow/internal/model"
)

// CaseRepo reads and writes the cases table.
type CaseRepo struct {
	c *Catalog
}

func NewCaseRepo(c *Catalog) *CaseRepo { return &CaseRepo{c: c} }

// Create inserts a new case row.
func (r *CaseRepo) Create(ctx context.Context, cs *model.Case) error {
	now := time.Now().UTC()
	cs.CreatedAt, cs.UpdatedAt = now, now
	if cs.SummaryStatus == "" {
		cs.SummaryStatus = model.SummaryStatusNone
	}

	_, err := r.c.db.ExecContext(ctx, r.c.bind(`
INSERT INTO cases (id, title, case_number, user_id, workspace_path, summary_status,
    summary_version, summary_document_count, grounding_status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`), cs.ID, cs.Title, cs.CaseNumber, cs.UserID, cs.WorkspacePath, cs.SummaryStatus,
		cs.SummaryVersion, cs.SummaryDocumentCount, cs.GroundingStatus, cs.CreatedAt, cs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting case: %w", err)
	}
	return nil
}

// Get fetches a case by id.
func (r *CaseRepo) Get(ctx context.Context, id string) (*model.Case, error) {
	row := r.c.db.QueryRowContext(ctx, r.c.bind(`
SELECT id, title, case_number, user_id, workspace_path, summary_status,
    summary_generated_at, summary_version, summary_document_count,
    narrative_updated_at, grounding_status, created_at, updated_at
FROM cases WHERE id = ?
`), id)
	cs, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseflowerr.New(caseflowerr.KindNotFound, fmt.Sprintf("case %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("scanning case %s: %w", id, err)
	}
	return cs, nil
}

// ListByUser returns every case owned by userID, newest first.
func (r *CaseRepo) ListByUser(ctx context.Context, userID string) ([]*model.Case, error) {
	rows, err := r.c.db.QueryContext(ctx, r.c.bind(`
SELECT id, title, case_number, user_id, workspace_path, summary_status,
    summary_generated_at, summary_version, summary_document_count,
    narrative_updated_at, grounding_status, created_at, updated_at
FROM cases WHERE user_id = ? ORDER BY created_at DESC
`), userID)
	if err != nil {
		return nil, fmt.Errorf("listing cases for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*model.Case
	for rows.Next() {
		cs, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning case row: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*model.Case, error) {
	var cs model.Case
	var caseNumber, groundingStatus sql.NullString
	var summaryGeneratedAt, narrativeUpdatedAt sql.NullTime
	err := row.Scan(&cs.ID, &cs.Title, &caseNumber, &cs.UserID, &cs.WorkspacePath,
		&cs.SummaryStatus, &summaryGeneratedAt, &cs.SummaryVersion, &cs.SummaryDocumentCount,
		&narrativeUpdatedAt, &groundingStatus, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cs.CaseNumber = caseNumber.String
	cs.GroundingStatus = groundingStatus.String
	if summaryGeneratedAt.Valid {
		t := summaryGeneratedAt.Time
		cs.SummaryGeneratedAt = &t
	}
	if narrativeUpdatedAt.Valid {
		t := narrativeUpdatedAt.Time
		cs.NarrativeUpdatedAt = &t
	}
	return &cs, nil
}

// BeginSummaryGeneration is the admission-gate compare-and-set: it moves
// summary_status to "generating" only if the current value is not
// already "generating", in one statement. The boolean result tells the
// caller whether it won the gate; a false result with a nil error means
// another request is already generating the summary.
func (r *CaseRepo) BeginSummaryGeneration(ctx context.Context, caseID string) (bool, error) {
	res, err := r.c.db.ExecContext(ctx, r.c.bind(`
UPDATE cases SET summary_status = ?, updated_at = ?
WHERE id = ? AND summary_status != ?
`), model.SummaryStatusGenerating, time.Now().UTC(), caseID, model.SummaryStatusGenerating)
	if err != nil {
		return false, fmt.Errorf("admitting summary generation for case %s: %w", caseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}

// FinishSummaryGeneration records a successful summary generation,
// unconditionally (the caller already holds the admission gate).
func (r *CaseRepo) FinishSummaryGeneration(ctx context.Context, caseID string, documentCount int) error {
	now := time.Now().UTC()
	_, err := r.c.db.ExecContext(ctx, r.c.bind(`
UPDATE cases SET summary_status = ?, summary_generated_at = ?, summary_version = summary_version + 1,
    summary_document_count = ?, narrative_updated_at = ?, updated_at = ?
WHERE id = ?
`), model.SummaryStatusGenerated, now, documentCount, now, now, caseID)
	if err != nil {
		return fmt.Errorf("finishing summary generation for case %s: %w", caseID, err)
	}
	return nil
}

// FailSummaryGeneration releases the admission gate after a failure.
func (r *CaseRepo) FailSummaryGeneration(ctx context.Context, caseID string) error {
	_, err := r.c.db.ExecContext(ctx, r.c.bind(`
UPDATE cases SET summary_status = ?, updated_at = ? WHERE id = ?
`), model.SummaryStatusFailed, time.Now().UTC(), caseID)
	if err != nil {
		return fmt.Errorf("failing summary generation for case %s: %w", caseID, err)
	}
	return nil
}

// MarkSummaryStale is the conditional CAS the Staleness Propagator uses:
// it only demotes a "generated" summary to "stale". A summary that is
// "none", "generating", or already "stale"/"failed" is left untouched,
// so a generation in flight is never clobbered by a late-arriving
// document completion.
func (r *CaseRepo) MarkSummaryStale(ctx context.Context, caseID string) error {
	_, err := r.c.db.ExecContext(ctx, r.c.bind(`
UPDATE cases SET summary_status = ?, updated_at = ?
WHERE id = ? AND summary_status = ?
`), model.SummaryStatusStale, time.Now().UTC(), caseID, model.SummaryStatusGenerated)
	if err != nil {
		return fmt.Errorf("marking summary stale for case %s: %w", caseID, err)
	}
	return nil
}

// Delete removes a case row. Cascading document/blob cleanup is the
// caller's responsibility (see internal/ingress).
func (r *CaseRepo) Delete(ctx context.Context, id string) error {
	_, err := r.c.db.ExecContext(ctx, r.c.bind(`DELETE FROM cases WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting case %s: %w", id, err)
	}
	return nil
}
