package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateReviewWithDraft tests the usual case of a review tied to a
// draft.
func TestCreateReviewWithDraft(t *testing.T) {
	client, mock := newMockClient(t)
	caseID := uuid.New()
	draftID := uuid.New()

	mock.ExpectExec(`INSERT INTO reviews`).
		WithArgs(sqlmock.AnyArg(), caseID, draftID, ReviewPending, "", "", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	row := &ReviewRow{CaseID: caseID, DraftID: &draftID}
	require.NoError(t, client.CreateReview(context.Background(), row))
	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateReviewWithoutDraft tests that a case with nothing to send
// still gets a review row, with a NULL draft reference.
func TestCreateReviewWithoutDraft(t *testing.T) {
	client, mock := newMockClient(t)
	caseID := uuid.New()

	mock.ExpectExec(`INSERT INTO reviews`).
		WithArgs(sqlmock.AnyArg(), caseID, nil, ReviewPending, "", "", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, client.CreateReview(context.Background(), &ReviewRow{CaseID: caseID}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestResolveReview tests that only pending reviews accept a decision.
func TestResolveReview(t *testing.T) {
	client, mock := newMockClient(t)
	reviewID := uuid.New()

	mock.ExpectExec(`UPDATE reviews SET decision = \$2`).
		WithArgs(reviewID, ReviewApproved, "alex@example.com", "ok", sqlmock.AnyArg(), ReviewPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, client.ResolveReview(context.Background(), reviewID, ReviewApproved, "alex@example.com", "ok"))

	mock.ExpectExec(`UPDATE reviews SET decision = \$2`).
		WithArgs(reviewID, ReviewRejected, "alex@example.com", "", sqlmock.AnyArg(), ReviewPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, client.ResolveReview(context.Background(), reviewID, ReviewRejected, "alex@example.com", ""), ErrNotFound)
}
