package coordinator

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkProcessedFirstDelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO processed_notifications").
		WithArgs("org-1", "evt-1", `"rev-1"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := newProcessedStoreWithExec(mock)
	fresh, err := store.MarkProcessed(context.Background(), "org-1", "evt-1", `"rev-1"`)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessedDuplicateRevision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO processed_notifications").
		WithArgs("org-1", "evt-1", `"rev-1"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	store := newProcessedStoreWithExec(mock)
	fresh, err := store.MarkProcessed(context.Background(), "org-1", "evt-1", `"rev-1"`)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlreadyProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT 1 FROM processed_notifications").
		WithArgs("org-1", "evt-1", `"rev-1"`).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	mock.ExpectQuery("SELECT 1 FROM processed_notifications").
		WithArgs("org-1", "evt-1", `"rev-2"`).
		WillReturnError(pgx.ErrNoRows)

	store := newProcessedStoreWithExec(mock)

	seen, err := store.AlreadyProcessed(context.Background(), "org-1", "evt-1", `"rev-1"`)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.AlreadyProcessed(context.Background(), "org-1", "evt-1", `"rev-2"`)
	require.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}
