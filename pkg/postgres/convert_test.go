package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

func TestTimeOfDayConversion(t *testing.T) {
	for _, tod := range []model.TimeOfDay{0, model.NewTimeOfDay(9, 30), model.NewTimeOfDay(23, 59), model.MinutesPerDay} {
		pg := pgTime(tod)
		assert.True(t, pg.Valid)
		assert.Equal(t, tod, timeOfDay(pg), tod.String())
	}

	assert.Equal(t, int64(10*time.Hour/time.Microsecond), pgTime(model.NewTimeOfDay(10, 0)).Microseconds)
}

func TestPgDateDropsClock(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Helsinki")
	d := pgDate(time.Date(2024, 9, 2, 23, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC), d.Time)
}

func TestDeref(t *testing.T) {
	s := "value"
	assert.Equal(t, "value", deref(&s))
	assert.Equal(t, "", deref(nil))
}

func TestMigrationsEmbedded(t *testing.T) {
	content, err := migrationsFS.ReadFile("migrations/001_init.sql")
	assert.NoError(t, err)
	assert.Contains(t, string(content), "allocated_time_slot_id TEXT NOT NULL UNIQUE")
}
