package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"retailpos/internal/core/id"
)

type MockTimestamps struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type mockLocation struct {
	ID       id.ID   `db:"id"`
	TenantID id.ID   `db:"tenant_id"`
	Name     string  `db:"name"`
	Phone    *string `db:"phone"`
	MockTimestamps

	Notes    string
	Children []string `db:"-"`
}

func TestExtractDBColumns_FieldOrderWithEmbedded(t *testing.T) {
	cols := ExtractDBColumns[mockLocation]()
	assert.Equal(t, []string{"id", "tenant_id", "name", "phone", "created_at", "updated_at"}, cols)

	// pointer type resolves to the same columns
	assert.Equal(t, cols, ExtractDBColumns[*mockLocation]())
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	phone := "+1 555 0100"
	loc := mockLocation{
		ID:             id.New(),
		TenantID:       id.New(),
		Name:           "Main Street",
		Phone:          &phone,
		MockTimestamps: MockTimestamps{CreatedAt: now, UpdatedAt: now},
		Notes:          "ignored",
		Children:       []string{"ignored"},
	}

	m := StructToMap(&loc)

	assert.Len(t, m, 6)
	assert.Equal(t, loc.ID, m["id"])
	assert.Equal(t, "Main Street", m["name"])
	assert.Equal(t, &phone, m["phone"])
	assert.Equal(t, now, m["created_at"])
	assert.NotContains(t, m, "Notes")

	var nilLoc *mockLocation
	assert.Nil(t, StructToMap(nilLoc))
	assert.Nil(t, StructToMap(42))
}

func TestColumnValues(t *testing.T) {
	loc := mockLocation{ID: id.New(), Name: "Depot"}
	vals := ColumnValues(loc, []string{"name", "id", "missing"})
	assert.Equal(t, []any{"Depot", loc.ID, nil}, vals)
}
