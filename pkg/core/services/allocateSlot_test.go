package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
)

func mondayRequest(optionID string, begin, end int) AllocateSlotRequest {
	return AllocateSlotRequest{
		OptionID:     optionID,
		DayOfTheWeek: model.Monday,
		BeginTime:    hours(begin),
		EndTime:      hours(end),
	}
}

func TestAllocateSlot(t *testing.T) {
	store := newTestStore()
	locker := &recordingLocker{}

	slot, err := AllocateSlot(context.Background(), store, testTree(t), locker, testClock(), zap.NewNop(), mondayRequest("option-1", 10, 12))
	require.NoError(t, err)

	assert.Equal(t, "section-1", slot.SectionID)
	assert.Equal(t, []model.AllocatedTimeSlot{*slot}, store.inserted)

	// court-a lives under the hall
	require.Len(t, locker.acquired, 1)
	assert.Equal(t, []string{"hall"}, locker.acquired[0])
	assert.Equal(t, 1, locker.released)
}

func TestAllocateSlot_OverlapInHierarchy(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, err := AllocateSlot(ctx, store, testTree(t), lock.NewLocal(), testClock(), zap.NewNop(), mondayRequest("option-1", 10, 12))
	require.NoError(t, err)

	// The hall contains court-a; force does not help
	request := mondayRequest("option-3", 10, 12)
	request.Force = true
	_, err = AllocateSlot(ctx, store, testTree(t), lock.NewLocal(), testClock(), zap.NewNop(), request)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasCode(model.CodeOverlappingAlloc))
	assert.Len(t, store.snapshot.Slots, 1)
}

func TestAllocateSlot_ForceBypassesSuitableRange(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, err := AllocateSlot(ctx, store, testTree(t), lock.NewLocal(), testClock(), zap.NewNop(), mondayRequest("option-1", 9, 11))
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasCode(model.CodeOutsideSuitableRange))

	request := mondayRequest("option-1", 9, 11)
	request.Force = true
	slot, err := AllocateSlot(ctx, store, testTree(t), lock.NewLocal(), testClock(), zap.NewNop(), request)
	require.NoError(t, err)
	assert.Equal(t, hours(9), slot.BeginTime)
}

func TestAllocateSlot_UnknownOption(t *testing.T) {
	_, err := AllocateSlot(context.Background(), newTestStore(), testTree(t), lock.NewLocal(), testClock(), zap.NewNop(), mondayRequest("missing", 10, 12))
	require.Error(t, err)
}

func TestAllocateSlot_ConcurrentRequestsDoNotOverlap(t *testing.T) {
	store := newTestStore()
	locker := lock.NewLocal()
	tree := testTree(t)

	// Both sections race for Monday 10-12 on units sharing the hall
	requests := []AllocateSlotRequest{mondayRequest("option-1", 10, 12), mondayRequest("option-3", 10, 12)}
	errs := make([]error, len(requests))

	var wg sync.WaitGroup
	for i, request := range requests {
		wg.Add(1)
		go func(i int, request AllocateSlotRequest) {
			defer wg.Done()
			_, errs[i] = AllocateSlot(context.Background(), store, tree, locker, testClock(), zap.NewNop(), request)
		}(i, request)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasCode(model.CodeOverlappingAlloc))
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, store.snapshot.Slots, 1)
}
