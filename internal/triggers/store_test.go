package triggers

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, keywords, response").
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "keywords", "response"}).
			AddRow("t1", "{price,cost}", "Our prices start at ₹499"))

	set, err := NewStore(db).List(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, []string{"price", "cost"}, set[0].Keywords)
	assert.Equal(t, "owner-1", set[0].OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreReplace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reply_triggers").
		WithArgs("owner-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO reply_triggers").
		WithArgs(sqlmock.AnyArg(), "owner-1", sqlmock.AnyArg(), "₹499", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := NewStore(db).Replace(context.Background(), "owner-1", []Trigger{{Keywords: []string{"price"}, Response: "₹499"}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.NotEmpty(t, saved[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreReplaceRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reply_triggers").WithArgs("owner-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO reply_triggers").
		WithArgs(sqlmock.AnyArg(), "owner-1", sqlmock.AnyArg(), "x", 0).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err = NewStore(db).Replace(context.Background(), "owner-1", []Trigger{{Keywords: []string{"price"}, Response: "x"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreReplaceKeepsSubmissionOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reply_triggers").WithArgs("owner-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO reply_triggers").
		WithArgs(sqlmock.AnyArg(), "owner-1", sqlmock.AnyArg(), "from size", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reply_triggers").
		WithArgs(sqlmock.AnyArg(), "owner-1", sqlmock.AnyArg(), "from sale", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := NewStore(db).Replace(context.Background(), "owner-1", []Trigger{
		{Keywords: []string{"size"}, Response: "from size"},
		{Keywords: []string{"sale"}, Response: "from sale"},
	})
	require.NoError(t, err)

	// a fresh set of ids must not change which equal-length keyword wins
	got, ok := NewMatcher(saved).Match("sale on this size?")
	assert.True(t, ok)
	assert.Equal(t, "from size", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
