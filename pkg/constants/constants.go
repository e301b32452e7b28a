// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package constants

import "time"

const (
	// RegistryLockTimeLimit bounds how long a single matcher scan may run
	// before it yields, so admission never waits behind a long scan.
	RegistryLockTimeLimit = 2 * time.Second

	DefaultExpansionTick    = 5 * time.Second
	DefaultScanInterval     = 1 * time.Second
	DefaultReadyCheckWindow = 30 * time.Second
	DefaultTicketTTL        = 10 * time.Minute
	DefaultTombstoneTTL     = 15 * time.Minute
)

const (
	// AnyRegion is the region class used by the cross-region pool.
	AnyRegion = "*"
)

const (
	ScanFunction       = "scan"
	ExpansionFunction  = "expand"
	ReadyCheckFunction = "readyCheck"

	// not matched reason constants.
	ReasonNotEnoughTickets  = "not_enough_tickets"
	ReasonNoCompatibleGroup = "no_compatible_group"
	ReasonRatingUnavailable = "rating_unavailable"
	ReasonRatingStale       = "rating_stale"
	ReasonProposalConflict  = "proposal_conflict"

	// commit result constants.
	CommitResultOK       = "ok"
	CommitResultRejected = "rejected"
	CommitResultError    = "error"
)

const (
	DependencyRatingStore    = "rating_store"
	DependencySessionService = "session_service"
	DependencyNotifier       = "participant_notifier"
	DependencyJournal        = "journal"
)
