package model_test

import (
	"testing"
	"time"

	"github.com/kasuganosora/gridpath/model"
	"github.com/kasuganosora/gridpath/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	rec := &model.MapRecord{
		ID:    "map-1",
		Name:  "meadow",
		Size:  2,
		Rows:  datatypes.JSON(`[".=","T."]`),
		Costs: datatypes.JSON(`{"grass":1,"road":0.25,"trees":3}`),
	}
	require.NoError(t, db.Create(rec).Error)

	var found model.MapRecord
	require.NoError(t, db.First(&found, "id = ?", "map-1").Error)
	assert.Equal(t, "meadow", found.Name)
	assert.Equal(t, 1, found.Version)
	assert.JSONEq(t, `[".=","T."]`, string(found.Rows))

	al := &model.AuditLog{
		TraceID: "trace-001", Action: "map_bind", MapID: "map-1",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(al).Error)
	assert.Greater(t, al.ID, int64(0))
}
