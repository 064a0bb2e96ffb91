package services

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/status"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// RoundView is the derived state of a round for display
type RoundView struct {
	Round        model.ApplicationRound
	Status       model.RoundStatus
	Applications []ApplicationView
}

// ApplicationView is an application with its derived status
type ApplicationView struct {
	Application model.Application
	Status      model.ApplicationStatus
	Sections    []SectionView
}

// SectionView is a section with its derived status and allocation details
type SectionView struct {
	Section     model.ApplicationSection
	Status      model.SectionStatus
	Options     []model.ReservationUnitOption
	Allocations []model.AllocatedTimeSlot
	Ranges      []RangeView

	// Occurrence counts over every series of the section
	Confirmed int
	Denied    int
}

// RangeView is a suitable time range and whether it still needs an allocation
type RangeView struct {
	Range     model.SuitableTimeRange
	Fulfilled bool
}

// ViewRound derives round, application and section statuses
func ViewRound(ctx context.Context, store RoundReader, clk clock.Clock, logger *zap.Logger, roundID string) (*RoundView, error) {
	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}

	view := buildRoundView(snapshot, roundStatus)

	logger.Debug("Built round view",
		zap.String("round_id", roundID),
		zap.String("status", string(view.Status)),
		zap.Int("applications", len(view.Applications)))

	return view, nil
}

func buildRoundView(snapshot *db.RoundSnapshot, roundStatus model.RoundStatus) *RoundView {
	type seriesCounts struct {
		series, confirmed, denied int
	}
	counts := make(map[string]*seriesCounts)
	for _, s := range snapshot.Series {
		c := counts[s.SectionID]
		if c == nil {
			c = &seriesCounts{}
			counts[s.SectionID] = c
		}
		c.series++
		c.confirmed += s.Confirmed
		c.denied += s.Denied
	}

	sectionsByApp := make(map[string][]SectionView)
	for _, section := range snapshot.Sections {
		sv := SectionView{Section: section}
		for _, o := range snapshot.Options {
			if o.SectionID == section.ID {
				sv.Options = append(sv.Options, o)
			}
		}
		slices.SortFunc(sv.Options, func(a, b model.ReservationUnitOption) int { return a.PreferredOrder - b.PreferredOrder })

		for _, slot := range snapshot.Slots {
			if slot.SectionID == section.ID {
				sv.Allocations = append(sv.Allocations, slot)
			}
		}

		usable := 0
		for _, o := range sv.Options {
			if o.IsUsable() {
				usable++
			}
		}

		in := status.SectionInput{
			RoundStatus:                roundStatus,
			AppliedReservationsPerWeek: section.AppliedReservationsPerWeek,
			AllocationsCount:           len(sv.Allocations),
			UsableOptionCount:          usable,
		}
		if c := counts[section.ID]; c != nil {
			in.SeriesCount = c.series
			in.ConfirmedOccurrences = c.confirmed
			in.DeniedOccurrences = c.denied
			sv.Confirmed = c.confirmed
			sv.Denied = c.denied
		}
		sv.Status = status.Section(in)

		for _, r := range snapshot.SuitableRanges {
			if r.SectionID != section.ID {
				continue
			}
			allocated := slices.ContainsFunc(sv.Allocations, func(slot model.AllocatedTimeSlot) bool {
				return slot.DayOfTheWeek == r.DayOfTheWeek
			})
			sv.Ranges = append(sv.Ranges, RangeView{Range: r, Fulfilled: status.TimeRangeFulfilled(sv.Status, allocated)})
		}

		sectionsByApp[section.ApplicationID] = append(sectionsByApp[section.ApplicationID], sv)
	}

	view := &RoundView{Round: snapshot.Round, Status: roundStatus}
	for _, app := range snapshot.Applications {
		sections := sectionsByApp[app.ID]
		slices.SortFunc(sections, func(a, b SectionView) int {
			if c := a.Section.CreatedAt.Compare(b.Section.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.Section.ID, b.Section.ID)
		})

		hasUnallocated := slices.ContainsFunc(sections, func(s SectionView) bool {
			return s.Status.IsInAllocationPhase()
		})
		view.Applications = append(view.Applications, ApplicationView{
			Application: app,
			Status:      status.Application(app, roundStatus, hasUnallocated),
			Sections:    sections,
		})
	}
	slices.SortFunc(view.Applications, func(a, b ApplicationView) int {
		if c := a.Application.CreatedAt.Compare(b.Application.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Application.ID, b.Application.ID)
	})

	return view
}
