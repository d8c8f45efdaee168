package db_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/db"
)

func TestObserveError(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name    string
		Err     error
		Counted float64
	}{
		{"success", nil, 0},
		{"missing row", db.ErrNotFound, 0},
		{"wrapped missing row", fmt.Errorf("message: %w", sql.ErrNoRows), 0},
		{"failure", errors.New("connection reset"), 1},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			query := "observe_error_" + test.Name
			db.ObserveError(query, test.Err)
			require.Equal(t, test.Counted, testutil.ToFloat64(db.QueryErrors.WithLabelValues(query)))
		})
	}
}

func TestObserveTx(t *testing.T) {
	t.Parallel()

	db.ObserveTx("observe_tx", nil)
	db.ObserveTx("observe_tx", errors.New("replay"))
	db.ObserveTx("observe_tx", errors.New("replay"))
	require.Equal(t, float64(1), testutil.ToFloat64(db.TxResults.WithLabelValues("observe_tx", "committed")))
	require.Equal(t, float64(2), testutil.ToFloat64(db.TxResults.WithLabelValues("observe_tx", "rolled_back")))
}
