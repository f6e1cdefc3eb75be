package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
)

func TestIsParticipant(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("conv-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewPostgresRepository(db)
	ok, err := repo.IsParticipant(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipants(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id"}).AddRow("user-1").AddRow("user-2")
	mock.ExpectQuery(`SELECT user_id FROM conversation_participants`).
		WithArgs("conv-1").
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)
	got, err := repo.Participants(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1", "user-2"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLastMessage_NotFoundOnZeroRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("conv-missing", "msg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(db)
	err = repo.SetLastMessage(context.Background(), "conv-missing", "msg-1", time.Now())
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
