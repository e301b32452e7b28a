// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"testing"
	"time"

	"github.com/onsi/gomega"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
)

// GomegaWithScope bundles gomega assertions with a test scope and a fake clock
// starting at Epoch.
type GomegaWithScope struct {
	TestScope *envelope.Scope
	Clock     *Clock
	*gomega.GomegaWithT
}

func ParallelWithGomega(t *testing.T) GomegaWithScope {
	t.Parallel()
	return WithGomega(t)
}

// WithGomega is ParallelWithGomega for tests that must run alone. Eventually
// polls every 10ms for up to 2s.
func WithGomega(t *testing.T) GomegaWithScope {
	g := gomega.NewGomegaWithT(t)
	g.SetDefaultEventuallyTimeout(2 * time.Second)
	g.SetDefaultEventuallyPollingInterval(10 * time.Millisecond)

	scope := NewTestScope()
	t.Cleanup(scope.Finish)

	return GomegaWithScope{TestScope: scope, Clock: NewClock(), GomegaWithT: g}
}
