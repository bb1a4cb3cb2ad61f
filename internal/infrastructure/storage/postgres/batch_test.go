package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertSQL(t *testing.T) {
	got := insertSQL("stock_movements", []string{"id", "quantity", "reference_id"})
	assert.Equal(t, `INSERT INTO "stock_movements" ("id", "quantity", "reference_id") VALUES ($1, $2, $3)`, got)
}
