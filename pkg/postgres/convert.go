package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

func pgTime(t model.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Duration() / time.Microsecond), Valid: true}
}

func timeOfDay(t pgtype.Time) model.TimeOfDay {
	return model.TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
