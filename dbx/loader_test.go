package dbx

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	conn := OpenDB(SQLServer, db)

	getByID := func(ctx context.Context, id int32) ([]*customer, error) {
		return Query[customer](ctx, conn, "zgen_Customer_GetById", id)
	}
	stmt := regexp.QuoteMeta("EXEC zgen_Customer_GetById @p1")
	mock.ExpectQuery(stmt).WithArgs(int32(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "note"}).AddRow(1, "Ada", nil))
	mock.ExpectQuery(stmt).WithArgs(int32(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "note"}))

	l := NewLoader(getByID)
	for range 3 {
		c, err := l.First(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Ada", c.Name)
	}
	c, err := l.First(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, c, "missing rows yield the zero value")
	_, err = l.First(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet(), "each key is fetched once")
}

func TestLoaderErrorsAreNotCached(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	l := NewLoader(func(context.Context, string) ([]int, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []int{42}, nil
	})

	_, err := l.Load(context.Background(), "a")
	assert.ErrorIs(t, err, boom)
	v, err := l.First(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}
