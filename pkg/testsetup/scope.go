// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
)

// NewTestScope creates a new scope for test use
func NewTestScope() *envelope.Scope {
	return envelope.NewRootScope(context.Background(), "test", "")
}

// NewTestScopeWithLogger creates a new scope using the given logger for test use
func NewTestScopeWithLogger(logger *logrus.Logger) *envelope.Scope {
	scope := envelope.NewRootScope(context.Background(), "test", "")
	scope.SetLogger(logger)
	return scope
}

// NewQuietTestScope creates a scope whose logs are discarded, for tests that
// run many scans.
func NewQuietTestScope() *envelope.Scope {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewTestScopeWithLogger(logger)
}
