package sheetsclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/openinghours"
)

// Expected column names in the opening hours sheet
var openingHoursFields = []string{
	"Reservation unit",
	"Day",
	"Opens",
	"Closes",
}

// ValuesGetter reads raw cell values from a spreadsheet range
type ValuesGetter interface {
	GetValues(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error)
}

// OpeningHoursSheet reads weekly opening hours from one tab of a spreadsheet
type OpeningHoursSheet struct {
	values  ValuesGetter
	sheetID string
	tab     string
}

var _ openinghours.Source = (*OpeningHoursSheet)(nil)

// NewOpeningHoursSheet creates a reader for the given spreadsheet tab
func NewOpeningHoursSheet(values ValuesGetter, sheetID, tab string) *OpeningHoursSheet {
	return &OpeningHoursSheet{values: values, sheetID: sheetID, tab: tab}
}

// GetOpeningHours retrieves and parses every opening hours row
func (s *OpeningHoursSheet) GetOpeningHours(ctx context.Context) ([]model.OpeningHours, error) {
	values, err := s.values.GetValues(ctx, s.sheetID, s.tab)
	if err != nil {
		return nil, fmt.Errorf("failed to get opening hours data: %w", err)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("spreadsheet is empty")
	}

	hours, err := parseOpeningHours(values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse opening hours: %w", err)
	}

	return hours, nil
}

// parseOpeningHours converts raw spreadsheet data into opening hour entries.
// A row may leave Opens and Closes empty to mark the unit closed that day.
func parseOpeningHours(raw [][]interface{}) ([]model.OpeningHours, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("no header row found")
	}

	fieldIndexes := make(map[string]int)
	for _, field := range openingHoursFields {
		index := -1
		for i, cell := range raw[0] {
			if cellStr, ok := cell.(string); ok && strings.TrimSpace(cellStr) == field {
				index = i
				break
			}
		}
		if index == -1 {
			return nil, fmt.Errorf("missing required field in header: %s", field)
		}
		fieldIndexes[field] = index
	}

	getField := func(field string, row []interface{}) string {
		index := fieldIndexes[field]
		if index >= len(row) {
			return ""
		}
		if str, ok := row[index].(string); ok {
			return strings.TrimSpace(str)
		}
		return ""
	}

	hours := make([]model.OpeningHours, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		row := raw[i]

		unitID := getField("Reservation unit", row)
		if unitID == "" {
			continue
		}

		opens, closes := getField("Opens", row), getField("Closes", row)
		if opens == "" && closes == "" {
			continue
		}

		// Row numbers are 1-based in the sheet UI
		day, err := model.ParseWeekday(getField("Day", row))
		if err != nil {
			return nil, fmt.Errorf("invalid day in row %d: %w", i+1, err)
		}
		begin, err := model.ParseTimeOfDay(opens)
		if err != nil {
			return nil, fmt.Errorf("invalid opening time in row %d: %w", i+1, err)
		}
		end, err := model.ParseTimeOfDay(closes)
		if err != nil {
			return nil, fmt.Errorf("invalid closing time in row %d: %w", i+1, err)
		}
		if begin >= end {
			return nil, fmt.Errorf("row %d closes before it opens", i+1)
		}

		hours = append(hours, model.OpeningHours{
			ReservationUnitID: unitID,
			DayOfTheWeek:      day,
			BeginTime:         begin,
			EndTime:           end,
		})
	}

	return hours, nil
}
