// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"gopkg.in/typ.v4/sync2"
)

// Pool reusable objects to reduce garbage collector
type Pool struct {
	PartySize *sync2.Pool[[]int]
}

func NewPool() *Pool {
	return &Pool{
		PartySize: &sync2.Pool[[]int]{
			New: func() []int {
				return make([]int, 0, 16)
			},
		},
	}
}

// SharedPool is used by the matcher on every scan.
var SharedPool = NewPool()
