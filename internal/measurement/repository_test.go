package measurement

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

func TestSQLRepository_InsertAndLatest(t *testing.T) {
	for name, open := range dbtest.Dialects() {
		t.Run(name, func(t *testing.T) {
			db := open(t)
			clock := clockwork.NewFakeClockAt(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
			repo := NewSQLRepository(db).WithClock(clock)
			reg := sensor.NewRegistry(sensor.NewSQLRepository(db))
			ctx := context.Background()

			_, err := repo.Latest(ctx, Filter{})
			require.ErrorIs(t, err, ErrNotFound, "empty store")

			a, _, err := reg.ResolveOrCreate(ctx, "AAAA")
			require.NoError(t, err)
			b, _, err := reg.ResolveOrCreate(ctx, "BBBB")
			require.NoError(t, err)

			insert := func(sid *int64, ith float64) *Measurement {
				t.Helper()
				clock.Advance(time.Minute)
				m, err := repo.Insert(ctx, sid, Reading{Temperature: 25, Humidity: 60, ITH: ith})
				require.NoError(t, err)
				return m
			}

			insert(&a, 70)
			lastA := insert(&a, 71)
			lastB := insert(&b, 72)
			orphan := insert(nil, 73)

			assert.NotZero(t, lastA.ID, "RETURNING id must fill the id")
			assert.True(t, lastA.Timestamp.Equal(time.Date(2026, 7, 1, 12, 2, 0, 0, time.UTC)))

			tests := []struct {
				name   string
				filter Filter
				wantID int64
			}{
				{"system wide", Filter{}, orphan.ID},
				{"by eui", Filter{DevEUI: "AAAA"}, lastA.ID},
				{"by sensor id", Filter{SensorID: &b}, lastB.ID},
				{"both agreeing", Filter{DevEUI: "BBBB", SensorID: &b}, lastB.ID},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					m, err := repo.Latest(ctx, tt.filter)
					require.NoError(t, err)
					assert.Equal(t, tt.wantID, m.ID)
				})
			}

			m, err := repo.Latest(ctx, Filter{DevEUI: "AAAA"})
			require.NoError(t, err)
			assert.Equal(t, &a, m.SensorID)
			assert.Equal(t, "AAAA", *m.DevEUI)
			assert.Equal(t, 71.0, m.ITH)
			assert.True(t, m.Timestamp.Equal(lastA.Timestamp), "fecha = %v", m.Timestamp)

			orphanRead, err := repo.Latest(ctx, Filter{})
			require.NoError(t, err)
			assert.Nil(t, orphanRead.SensorID)
			assert.Nil(t, orphanRead.DevEUI)

			for _, f := range []Filter{{DevEUI: "CCCC"}, {DevEUI: "AAAA", SensorID: &b}} {
				_, err := repo.Latest(ctx, f)
				assert.ErrorIs(t, err, ErrNotFound, "Latest(%+v)", f)
			}
		})
	}
}

func TestSQLRepository_SensorDeletionKeepsHistory(t *testing.T) {
	for name, open := range dbtest.Dialects() {
		t.Run(name, func(t *testing.T) {
			db := open(t)
			repo := NewSQLRepository(db)
			ctx := context.Background()

			sid, _, err := sensor.NewRegistry(sensor.NewSQLRepository(db)).ResolveOrCreate(ctx, "DDDD")
			require.NoError(t, err)
			stored, err := repo.Insert(ctx, &sid, Reading{Temperature: 30, Humidity: 70, ITH: 80.1})
			require.NoError(t, err)

			_, err = db.ExecContext(ctx, "DELETE FROM sensores WHERE id = ?", sid)
			require.NoError(t, err)

			m, err := repo.Latest(ctx, Filter{})
			require.NoError(t, err)
			assert.Equal(t, stored.ID, m.ID)
			assert.Nil(t, m.SensorID, "id_sensor is nulled when the sensor goes away")

			_, err = repo.Latest(ctx, Filter{DevEUI: "DDDD"})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
