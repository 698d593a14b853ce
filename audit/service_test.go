package audit

import (
	"context"
	"testing"

	"github.com/kasuganosora/gridpath/model"
	"github.com/kasuganosora/gridpath/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_StartsWorker(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	require.NotNil(t, svc)
	svc.Stop(context.Background())
}

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	svc.Log(Entry{
		TraceID:    "trace-123",
		Action:     ActionPathSubmit,
		MapID:      "map-1",
		RequestID:  "req-1",
		Request:    map[string]int{"start_x": 0, "goal_x": 4},
		Response:   map[string]string{"request_id": "req-1"},
		IP:         "127.0.0.1",
		DurationMs: 3,
	})

	// Stop flushes remaining entries
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	assert.Equal(t, ActionPathSubmit, logs[0].Action)
	assert.Equal(t, "map-1", logs[0].MapID)
	assert.Equal(t, "req-1", logs[0].RequestID)
	assert.Equal(t, "127.0.0.1", logs[0].IP)
	assert.Equal(t, 3, logs[0].DurationMs)
	assert.JSONEq(t, `{"request_id":"req-1"}`, string(logs[0].Response))
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	for i := 0; i < 250; i++ {
		svc.Log(Entry{Action: ActionMapBind, MapID: "m"})
	}
	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.Equal(t, int64(250), count)
}

func TestLog_RejectCarriesError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	svc.Log(Entry{Action: ActionPathReject, Error: "pathfind: point out of bounds"})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	db.Find(&logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "pathfind: point out of bounds", logs[0].Error)
	assert.Empty(t, logs[0].Request)
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	svc.Stop(context.Background())
	svc.Stop(context.Background()) // must not panic
}

func TestLog_DropsWhenFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	// The buffer holds 1024; flooding past it must not block or panic.
	for i := 0; i < 1030; i++ {
		svc.Log(Entry{Action: "flood"})
	}
	svc.Stop(context.Background())
}
