package audit

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database/dbtest"
)

func setupTestRepo(t *testing.T) (*SQLRepository, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewSQLRepository(dbtest.SQLite(t)).WithClock(clock), clock
}

func TestCreateAndList(t *testing.T) {
	repo, clock := setupTestRepo(t)
	ctx := context.Background()

	first := &AuditLog{
		Action:     ActionSensorUpdate,
		EntityType: EntitySensor,
		EntityID:   "1",
		Source:     SourceAPI,
		RequestID:  "req-1",
		Details:    map[string]any{"affected_rows": 1},
	}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.True(t, first.CreatedAt.Equal(clock.Now()))

	clock.Advance(time.Minute)
	require.NoError(t, repo.Create(ctx, &AuditLog{
		Action:     ActionDownlinkSend,
		EntityType: EntitySensor,
		EntityID:   "2",
		Source:     SourceAPI,
	}))

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Logs, 2)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, defaultLimit, res.Limit)
	assert.Equal(t, ActionDownlinkSend, res.Logs[0].Action, "newest first")
	assert.Equal(t, "req-1", res.Logs[1].RequestID)
	assert.Equal(t, 1.0, res.Logs[1].Details["affected_rows"])
}

func TestList_Filters(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	for _, e := range []AuditLog{
		{Action: ActionSensorCreate, EntityType: EntitySensor, EntityID: "1", Source: SourceAPI},
		{Action: ActionSensorLink, EntityType: EntitySensor, EntityID: "1", Source: SourceAPI},
		{Action: ActionDownlinkSend, EntityType: EntitySensor, EntityID: "2", Source: SourceMQTT},
	} {
		require.NoError(t, repo.Create(ctx, &e))
	}

	tests := []struct {
		name   string
		filter Filter
		total  int
		logs   int
	}{
		{"by entity", Filter{EntityType: EntitySensor, EntityID: "1"}, 2, 2},
		{"by action", Filter{Action: ActionDownlinkSend}, 1, 1},
		{"page", Filter{Limit: 1, Offset: 1}, 3, 1},
		{"past end", Filter{Offset: 10}, 3, 0},
		{"limit clamped", Filter{Limit: 1000, Offset: -5}, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.total, res.Total)
			assert.Len(t, res.Logs, tt.logs)
			assert.LessOrEqual(t, res.Limit, maxLimit)
		})
	}
}
