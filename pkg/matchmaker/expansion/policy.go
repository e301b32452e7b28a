// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package expansion

import (
	"math"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// Policy decides how much a ticket's range widens in one tick.
// profile is nil when no rating store is configured.
type Policy interface {
	Step(rule models.ModeRule, ticket models.Ticket, profile *models.RatingProfile) int
}

// SmurfAwarePolicy slows expansion down for suspected smurfs, so they wait
// longer before being matched against lower rated players.
type SmurfAwarePolicy struct {
	Threshold  float64
	StepFactor float64
}

func (p SmurfAwarePolicy) Step(rule models.ModeRule, _ models.Ticket, profile *models.RatingProfile) int {
	step := rule.ExpansionStep
	if step <= 0 || profile == nil || profile.SmurfScore < p.Threshold {
		return step
	}

	slowed := int(math.Round(float64(step) * p.StepFactor))
	if slowed < 1 {
		slowed = 1
	}
	return slowed
}

// FixedPolicy always uses the mode's step.
type FixedPolicy struct{}

func (FixedPolicy) Step(rule models.ModeRule, _ models.Ticket, _ *models.RatingProfile) int {
	return rule.ExpansionStep
}
