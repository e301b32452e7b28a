// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package partition

import "fmt"

// Party is an Item made of a party's size and average rating.
type Party struct {
	Index  int
	Size   int
	Rating float64
}

func (p Party) Value() float64 {
	return p.Rating * float64(p.Size)
}

func (p Party) Count() int {
	return p.Size
}

func (p Party) ID() int {
	return p.Index
}

func (p Party) String() string {
	return fmt.Sprintf("%d:%vx%d", p.Index, p.Rating, p.Size)
}
