// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package partition splits weighted items into a fixed number of partitions
// with the complete greedy algorithm, minimising first the difference in item
// counts and then the difference in partition averages.
package partition

import (
	"context"
	"math"
	"sort"
)

// limit based on function iteration
const iterationLimit = 1_000_000

// Item is an atomic unit placed in a partition.
type Item interface {
	// Value is the total weight of the item, e.g. the summed rating of a party.
	Value() float64
	// Count is how many seats the item takes, e.g. the party size.
	Count() int
	// ID identifies the item for the caller.
	ID() int
}

type Options struct {
	Ctx context.Context
	// MaxCount is the maximum total count of one partition. 0 means an even split.
	MaxCount int
	// MaxIteration limits how many complete assignments are evaluated. 0 means no limit.
	MaxIteration int
}

// Result holds the best assignment found.
type Result struct {
	BestDistance   float64
	BestCountDiff  int
	BestPartitions [][]Item
	IsTimeout      bool

	iterations int
	calls      int
}

// NumIteration returns how many complete assignments were evaluated.
func (r *Result) NumIteration() int {
	return r.iterations
}

// Found reports whether every item could be placed within MaxCount.
func (r *Result) Found() bool {
	return r.BestPartitions != nil
}

type sequencedItem struct {
	Item
	// orders items so [a][b] and [b][a] are explored once
	sequence int
}

type bucket struct {
	index int
	sum   float64
	count int
	items []sequencedItem
}

func (b *bucket) push(item sequencedItem) {
	b.sum += item.Value()
	b.count += item.Count()
	b.items = append(b.items, item)
}

func (b *bucket) pop() {
	last := b.items[len(b.items)-1]
	b.items = b.items[:len(b.items)-1]
	b.sum -= last.Value()
	b.count -= last.Count()
}

func (b *bucket) avg() float64 {
	if b.count == 0 {
		return 0
	}
	return b.sum / float64(b.count)
}

func (b *bucket) firstSequence() int {
	if len(b.items) == 0 {
		return -1
	}
	return b.items[0].sequence
}

type search struct {
	options Options
	items   []sequencedItem
	buckets []*bucket // fixed order, index == bucket.index
	result  *Result
}

func (s *search) canceled() bool {
	if s.options.MaxIteration > 0 && s.result.iterations >= s.options.MaxIteration {
		return true
	}
	if s.options.Ctx == nil {
		return false
	}
	select {
	case <-s.options.Ctx.Done():
		s.result.IsTimeout = true
		return true
	default:
		return false
	}
}

// Balance runs the complete greedy algorithm:
//
//  1. Sort items from the highest value to the lowest.
//  2. Depth first, place the current item in every partition, trying the
//     partition with the lowest sum first, and recurse to the next item.
//  3. Every complete placement is scored by count difference, then by the
//     gap between the highest and lowest partition average.
//
// Partitions whose first items are out of sequence are pruned, since they are
// a reordering of a placement already explored.
func Balance(items []Item, numPartition int, options Options) *Result {
	result := &Result{BestDistance: math.MaxFloat64, BestCountDiff: math.MaxInt32}
	if numPartition <= 0 {
		return result
	}

	sequenced := make([]sequencedItem, len(items))
	totalCount := 0
	for i, item := range items {
		sequenced[i] = sequencedItem{Item: item}
		totalCount += item.Count()
	}
	sort.SliceStable(sequenced, func(i, j int) bool {
		return sequenced[i].Value() > sequenced[j].Value()
	})
	for i := range sequenced {
		sequenced[i].sequence = i
	}

	if options.MaxCount == 0 {
		options.MaxCount = int(math.Ceil(float64(totalCount) / float64(numPartition)))
	}

	buckets := make([]*bucket, numPartition)
	for i := range buckets {
		buckets[i] = &bucket{index: i}
	}

	s := &search{options: options, items: sequenced, buckets: buckets, result: result}
	order := make([]*bucket, numPartition)
	copy(order, buckets)
	s.place(order, 0)

	return result
}

func (s *search) place(order []*bucket, depth int) {
	if s.canceled() {
		return
	}
	s.result.calls++
	if s.result.calls > iterationLimit {
		return
	}

	if depth == len(s.items) {
		s.result.iterations++
		s.score()
		return
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].sum < order[j].sum
	})
	indexes := make([]int, len(order))
	for i, b := range order {
		indexes[i] = b.index
	}

	item := s.items[depth]
	for _, i := range indexes {
		target := s.buckets[i]
		target.push(item)
		if target.count > s.options.MaxCount || s.outOfSequence() {
			target.pop()
			continue
		}
		s.place(order, depth+1)
		target.pop()
	}
}

func (s *search) outOfSequence() bool {
	previous := -1
	for _, b := range s.buckets {
		sequence := b.firstSequence()
		if sequence == -1 {
			continue
		}
		if previous > sequence {
			return true
		}
		previous = sequence
	}
	return false
}

func (s *search) score() {
	minCount, maxCount := math.MaxInt32, math.MinInt32
	minAvg, maxAvg := math.MaxFloat64, -math.MaxFloat64
	for _, b := range s.buckets {
		minCount = min(minCount, b.count)
		maxCount = max(maxCount, b.count)
		minAvg = math.Min(minAvg, b.avg())
		maxAvg = math.Max(maxAvg, b.avg())
	}
	countDiff := maxCount - minCount
	distance := maxAvg - minAvg

	if countDiff > s.result.BestCountDiff || (countDiff == s.result.BestCountDiff && distance >= s.result.BestDistance) {
		return
	}

	s.result.BestCountDiff = countDiff
	s.result.BestDistance = distance
	if s.result.BestPartitions == nil {
		s.result.BestPartitions = make([][]Item, len(s.buckets))
	}
	for i, b := range s.buckets {
		s.result.BestPartitions[i] = s.result.BestPartitions[i][:0]
		for _, item := range b.items {
			s.result.BestPartitions[i] = append(s.result.BestPartitions[i], item.Item)
		}
	}
}
