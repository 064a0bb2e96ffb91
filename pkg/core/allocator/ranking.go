package allocator

import (
	"cmp"
	"slices"
)

// RankSections sorts sections so the one to allocate next comes first.
//
// Order:
//  1. Best remaining suitable-range priority (PRIMARY before SECONDARY)
//  2. Fewest allocations so far (least served first)
//  3. Most remaining weekly quota
//  4. Creation order
func RankSections(sections []*SectionState) {
	slices.SortStableFunc(sections, compareSections)
}

// compareSections returns a negative number when a should be allocated before b
func compareSections(a, b *SectionState) int {
	if c := cmp.Compare(b.BestRemainingPriority(), a.BestRemainingPriority()); c != 0 {
		return c
	}
	if c := cmp.Compare(len(a.Allocations), len(b.Allocations)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.RemainingQuota(), a.RemainingQuota()); c != 0 {
		return c
	}
	return cmp.Compare(a.Order, b.Order)
}
