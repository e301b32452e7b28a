// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package matchmaker

import (
	"fmt"
	"math"
)

// Interval is a closed range of ratings.
type Interval struct {
	Low  float64
	High float64
}

// Unbounded is the identity of Intersect.
var Unbounded = Interval{Low: math.Inf(-1), High: math.Inf(1)}

func (i Interval) IsEmpty() bool {
	return i.Low > i.High
}

func (i Interval) Overlaps(other Interval) bool {
	return !i.Intersect(other).IsEmpty()
}

func (i Interval) Intersect(other Interval) Interval {
	return Interval{Low: math.Max(i.Low, other.Low), High: math.Min(i.High, other.High)}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%.1f, %.1f]", i.Low, i.High)
}

// LinearComparator accepts ratings within halfWidth of the ticket's rating.
type LinearComparator struct{}

func (LinearComparator) Window(rating float64, halfWidth int) Interval {
	return Interval{Low: rating - float64(halfWidth), High: rating + float64(halfWidth)}
}
