package database

import (
	"context"

	"github.com/google/uuid"
)

const issueSequenceNumber = `
INSERT INTO sequence_counters (tenant_id, series, date_code, next_seq)
VALUES ($1, $2, $3, 2)
ON CONFLICT (tenant_id, series, date_code)
DO UPDATE SET next_seq = sequence_counters.next_seq + 1
RETURNING next_seq - 1
`

type IssueSequenceNumberParams struct {
	TenantID uuid.UUID
	Series   string
	DateCode string
}

// IssueSequenceNumber atomically claims the next number in the
// (tenant, series, date) counter. The first caller of a day gets 1: the
// row is created with next_seq=2 and the issued number is next_seq-1.
// The upsert increment is race-free at the row level; no extra locking.
func (q *Queries) IssueSequenceNumber(ctx context.Context, arg IssueSequenceNumberParams) (int64, error) {
	row := q.db.QueryRow(ctx, issueSequenceNumber, arg.TenantID, arg.Series, arg.DateCode)
	var number int64
	err := row.Scan(&number)
	return number, err
}
