// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"errors"
	"fmt"
)

var (
	ValidationErrorPartyExceedsTeam = errors.New("max party size should not exceed team size")
	ValidationErrorRatingRange      = errors.New("initial rating range should not exceed max rating range")
	ValidationErrorDuplicateMode    = errors.New("mode is configured more than once")
)

var (
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrStaleState            = errors.New("stale ticket state")
	ErrInvalidTransition     = errors.New("transition not allowed")
	ErrProposalNotFound      = errors.New("proposal not found")
	ErrReadyCheckClosed      = errors.New("ready check already resolved")
	ErrSessionRejected       = errors.New("session service rejected the match")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrRatingStale           = errors.New("rating data is stale")
	ErrRatingNotFound        = errors.New("rating not found")
	ErrUnknownWindow         = errors.New("unknown analytics window")
)

// RejectionReason is the wire value of an admission failure.
type RejectionReason string

const (
	RejectionAlreadyQueued     RejectionReason = "ALREADY_QUEUED"
	RejectionPartyTooLarge     RejectionReason = "PARTY_TOO_LARGE"
	RejectionInvalidLevelRange RejectionReason = "INVALID_LEVEL_RANGE"
	RejectionUnsupportedMode   RejectionReason = "UNSUPPORTED_MODE"
	RejectionInvalidParty      RejectionReason = "INVALID_PARTY"
	RejectionInvalidRequest    RejectionReason = "INVALID_REQUEST"
)

// RejectionError is returned by admission when the request is client-correctable.
type RejectionError struct {
	Reason RejectionReason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Is matches any RejectionError with the same reason.
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Reason == e.Reason && t.Detail == ""
}

// Reject builds a RejectionError.
func Reject(reason RejectionReason, format string, args ...interface{}) error {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// RejectionReasonOf extracts the reason from a rejection error.
func RejectionReasonOf(err error) (RejectionReason, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Reason, true
	}
	return "", false
}

var validationErrorCodeMap = map[error]int{
	ValidationErrorPartyExceedsTeam: 510120,
	ValidationErrorRatingRange:      510121,
	ValidationErrorDuplicateMode:    510122,
}

var rejectionCodeMap = map[RejectionReason]int{
	RejectionAlreadyQueued:     510130,
	RejectionPartyTooLarge:     510131,
	RejectionInvalidLevelRange: 510132,
	RejectionUnsupportedMode:   510133,
	RejectionInvalidParty:      510134,
	RejectionInvalidRequest:    510135,
}

// ValidationErrorCode returns a code for the error.
// It returns 20002 if the error is not registered.
func ValidationErrorCode(err error) int {
	if reason, ok := RejectionReasonOf(err); ok {
		if code, found := rejectionCodeMap[reason]; found {
			return code
		}
	}
	for known, code := range validationErrorCodeMap {
		if errors.Is(err, known) {
			return code
		}
	}
	return 20002
}
