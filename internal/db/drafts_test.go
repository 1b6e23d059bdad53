package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	client := NewClientFromDB(sqlx.NewDb(mockDB, "postgres"), zaptest.NewLogger(t))
	t.Cleanup(func() { _ = client.Close() })
	return client, mock
}

func draftColumns() []string {
	return []string{"id", "case_id", "draft_type", "subject", "body", "summary", "actions", "version", "created_at", "updated_at"}
}

var (
	selectDraftForUpdate = regexp.QuoteMeta(`SELECT * FROM drafts WHERE case_id = $1 AND draft_type = $2 FOR UPDATE`)
	insertDraft          = regexp.QuoteMeta(`INSERT INTO drafts`)
	updateDraft          = regexp.QuoteMeta(`UPDATE drafts SET body = $2, summary = $3, actions = $4, version = $5, updated_at = $6`)
)

// TestMergeDraftFirstWriterInserts tests that the first contribution
// creates the draft at version 1
func TestMergeDraftFirstWriterInserts(t *testing.T) {
	client, mock := newMockClient(t)
	caseID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(selectDraftForUpdate).
		WithArgs(caseID, "public_reply").
		WillReturnRows(sqlmock.NewRows(draftColumns()))
	mock.ExpectExec(insertDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	merged, err := client.MergeDraft(context.Background(), &DraftRow{
		CaseID:    caseID,
		DraftType: "public_reply",
		Subject:   "Re: Meter reading",
		Body:      "Hello",
		Summary:   "plan summary",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, merged.Version)
	assert.Equal(t, "Hello", merged.Body)
	assert.Equal(t, "Re: Meter reading", merged.Subject)
	assert.NotEqual(t, uuid.Nil, merged.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMergeDraftAppendsBody tests the merge semantics against an
// existing draft: body appends, subject stays, and a contribution
// without actions cannot overwrite the stored summary
func TestMergeDraftAppendsBody(t *testing.T) {
	client, mock := newMockClient(t)
	caseID := uuid.New()
	draftID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(selectDraftForUpdate).
		WithArgs(caseID, "public_reply").
		WillReturnRows(sqlmock.NewRows(draftColumns()).AddRow(
			draftID, caseID, "public_reply", "Re: Meter reading",
			"first part", "stored summary", []byte(`[{"action_type":"submit_meter_reading"}]`),
			1, now, now,
		))
	mock.ExpectExec(updateDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	merged, err := client.MergeDraft(context.Background(), &DraftRow{
		CaseID:    caseID,
		DraftType: "public_reply",
		Subject:   "a different subject",
		Body:      "second part",
		Summary:   "unwanted summary",
	})
	require.NoError(t, err)

	assert.Equal(t, "first part\n\n---\n\nsecond part", merged.Body)
	assert.Equal(t, "Re: Meter reading", merged.Subject, "first subject wins")
	assert.Equal(t, "stored summary", merged.Summary, "no actions, no summary overwrite")
	assert.Equal(t, 2, merged.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMergeDraftActionsOverwriteSummary tests that a contribution
// carrying action specs replaces summary and actions
func TestMergeDraftActionsOverwriteSummary(t *testing.T) {
	client, mock := newMockClient(t)
	caseID := uuid.New()
	draftID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(selectDraftForUpdate).
		WithArgs(caseID, "public_reply").
		WillReturnRows(sqlmock.NewRows(draftColumns()).AddRow(
			draftID, caseID, "public_reply", "Re: Meter reading",
			"first part", "old summary", []byte(`[]`),
			1, now, now,
		))
	mock.ExpectExec(updateDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	merged, err := client.MergeDraft(context.Background(), &DraftRow{
		CaseID:    caseID,
		DraftType: "public_reply",
		Body:      "second part",
		Summary:   "new summary",
		Actions:   JSONBArray{map[string]interface{}{"action_type": "submit_meter_reading"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "new summary", merged.Summary)
	assert.Len(t, merged.Actions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMergeDraftBodyConcatAssociative tests that merging three
// contributions in sequence yields the same body as any grouping of the
// pairwise concatenations, so branch arrival order is the only thing
// that matters
func TestMergeDraftBodyConcatAssociative(t *testing.T) {
	client, mock := newMockClient(t)
	caseID := uuid.New()
	draftID := uuid.New()
	now := time.Now().UTC()

	const sep = "\n\n---\n\n"
	parts := []string{"auth part", "non-auth part", "follow-up part"}

	mock.ExpectBegin()
	mock.ExpectQuery(selectDraftForUpdate).
		WithArgs(caseID, "public_reply").
		WillReturnRows(sqlmock.NewRows(draftColumns()))
	mock.ExpectExec(insertDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bodies := []string{parts[0], parts[0] + sep + parts[1]}
	for i, stored := range bodies {
		mock.ExpectBegin()
		mock.ExpectQuery(selectDraftForUpdate).
			WithArgs(caseID, "public_reply").
			WillReturnRows(sqlmock.NewRows(draftColumns()).AddRow(
				draftID, caseID, "public_reply", "subj", stored, "", []byte(`[]`), i+1, now, now,
			))
		mock.ExpectExec(updateDraft).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	var merged *DraftRow
	for _, part := range parts {
		var err error
		merged, err = client.MergeDraft(context.Background(), &DraftRow{
			CaseID:    caseID,
			DraftType: "public_reply",
			Subject:   "subj",
			Body:      part,
		})
		require.NoError(t, err)
	}

	leftGrouped := (parts[0] + sep + parts[1]) + sep + parts[2]
	rightGrouped := parts[0] + sep + (parts[1] + sep + parts[2])
	assert.Equal(t, leftGrouped, merged.Body)
	assert.Equal(t, rightGrouped, merged.Body)
	assert.Equal(t, 3, merged.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMergeDraftStaleVersionRetries tests the bounded retry on the
// optimistic version guard
func TestMergeDraftStaleVersionRetries(t *testing.T) {
	client, mock := newMockClient(t)
	caseID := uuid.New()
	draftID := uuid.New()
	now := time.Now().UTC()

	for i := 0; i < draftMergeMaxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(selectDraftForUpdate).
			WithArgs(caseID, "public_reply").
			WillReturnRows(sqlmock.NewRows(draftColumns()).AddRow(
				draftID, caseID, "public_reply", "subj", "body", "", []byte(`[]`), 1, now, now,
			))
		mock.ExpectExec(updateDraft).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
	}

	_, err := client.MergeDraft(context.Background(), &DraftRow{
		CaseID:    caseID,
		DraftType: "public_reply",
		Body:      "part",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.NoError(t, mock.ExpectationsWereMet())
}
