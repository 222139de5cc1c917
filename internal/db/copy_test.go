package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Pool = (pgxmock.PgxPoolIface)(nil)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "orders", []string{"order_id", "customer_id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"orders"}, []string{"order_id", "customer_id"}).WillReturnResult(3)

	rows := [][]any{{"O1", "A001"}, {"O2", "A001"}, {"O3", "A002"}}
	n, err := CopyFrom(context.Background(), mock, "orders", []string{"order_id", "customer_id"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Schema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"strategy", "run_accounts"}, []string{"run_id"}).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "strategy.run_accounts", []string{"run_id"}, [][]any{{"r1"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"orders"}, []string{"order_id"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "orders", []string{"order_id"}, [][]any{{"O1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO orders")
	assert.NoError(t, mock.ExpectationsWereMet())
}
