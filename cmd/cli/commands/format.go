package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

func formatSlot(slot model.AllocatedTimeSlot) string {
	return fmt.Sprintf("%-9s %s", slot.DayOfTheWeek, slot.Range())
}

func sectionStatusColor(s model.SectionStatus) string {
	switch s {
	case model.SectionHandled, model.SectionReserved:
		return colorGreen
	case model.SectionFailed:
		return colorRed
	case model.SectionInAllocation:
		return colorYellow
	}
	return ""
}

// describeError renders domain errors for the terminal, one violation per line
func describeError(err error) string {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		var b strings.Builder
		b.WriteString("validation failed:")
		for _, v := range verr.Violations {
			b.WriteString("\n  • ")
			if v.Field != "" {
				b.WriteString(v.Field + ": ")
			}
			b.WriteString(v.Message + " [" + v.Code + "]")
		}
		return b.String()
	}
	return err.Error()
}

// parseSlotArgs parses "<day> <begin> <end>"
func parseSlotArgs(day, begin, end string) (model.Weekday, model.TimeOfDay, model.TimeOfDay, error) {
	weekday, err := model.ParseWeekday(day)
	if err != nil {
		return 0, 0, 0, err
	}
	beginTime, err := model.ParseTimeOfDay(begin)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid begin time: %w", err)
	}
	endTime, err := model.ParseTimeOfDay(end)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end time: %w", err)
	}
	return weekday, beginTime, endTime, nil
}
