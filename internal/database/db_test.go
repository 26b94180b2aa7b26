package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "app@tcp(db:3306)/tickets?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("app", "", "db", "3306", "tickets"))
	assert.Equal(t, "app:secret@tcp(db:3306)/tickets?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("app", "secret", "db", "3306", "tickets"))
}

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 5)
	for _, s := range stmts {
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS"), s)
	}
	assert.Contains(t, stmts[3], "bookings")
	assert.Contains(t, stmts[4], "uq_transactions_booking")
}
