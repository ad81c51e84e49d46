package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealdb.go"
)

func TestWrapQueryError(t *testing.T) {
	assert.NoError(t, wrapQueryError(nil))

	conflict := &surrealdb.QueryError{Message: "Transaction conflict: resource busy"}
	err := wrapQueryError(conflict)
	assert.ErrorIs(t, err, ErrTransactionConflict)
	assert.Contains(t, err.Error(), "resource busy")

	other := errors.New("parse error")
	assert.Equal(t, other, wrapQueryError(other))
	assert.NotErrorIs(t, wrapQueryError(&surrealdb.QueryError{Message: "no such table"}), ErrTransactionConflict)
}
