package allocator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

func violationNames(violations []StateViolation) []string {
	names := make([]string, len(violations))
	for i, v := range violations {
		names[i] = v.ConstraintName
	}
	return names
}

func TestValidateState_ValidState(t *testing.T) {
	state := newStateBuilder().
		application("app-1").
		section("section-1", "app-1", 2, time.Hour, 2*time.Hour).
		option("option-1", "section-1", "hall", 1).
		slot("slot-1", "option-1", model.Monday, 10, 12).
		slot("slot-2", "option-1", model.Tuesday, 10, 12).
		build(t)

	assert.Empty(t, ValidateState(state))
}

func TestValidateState_ReportsBrokenInvariants(t *testing.T) {
	state := newStateBuilder().
		application("app-1").
		section("section-1", "app-1", 1, time.Hour, 2*time.Hour).
		option("option-1", "section-1", "hall", 1).
		slot("slot-1", "option-1", model.Monday, 10, 12).
		slot("slot-2", "option-1", model.Monday, 14, 16).
		section("section-2", "app-1", 1, time.Hour, 2*time.Hour).
		option("option-2", "section-2", "court-a", 1).
		slot("slot-3", "option-2", model.Monday, 11, 13).
		related("hall", "court-a").
		related("court-a", "hall").
		build(t)

	violations := ValidateState(state)

	assert.ElementsMatch(t, []string{"OnePerDay", "Quota", "NoOverlap"}, violationNames(violations))
	for _, v := range violations {
		if v.ConstraintName == "NoOverlap" {
			assert.Equal(t, "slot-1", v.SlotID)
			assert.Contains(t, v.Description, "slot-3")
		}
	}
}
