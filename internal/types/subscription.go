package types

import (
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the lifecycle status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusDraft     SubscriptionStatus = "draft"
	SubscriptionStatusQuotation SubscriptionStatus = "quotation"
	SubscriptionStatusConfirmed SubscriptionStatus = "confirmed"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusClosed    SubscriptionStatus = "closed"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusDraft,
		SubscriptionStatusQuotation,
		SubscriptionStatusConfirmed,
		SubscriptionStatusActive,
		SubscriptionStatusPaused,
		SubscriptionStatusClosed,
		SubscriptionStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// LinesMutable reports whether subscription lines may still be edited.
// Lines lock permanently once the subscription is confirmed.
func (s SubscriptionStatus) LinesMutable() bool {
	return s == SubscriptionStatusDraft || s == SubscriptionStatusQuotation
}

// SubscriptionAction is a requested transition on a subscription
type SubscriptionAction string

const (
	SubscriptionActionToQuotation SubscriptionAction = "to_quotation"
	SubscriptionActionConfirm     SubscriptionAction = "confirm"
	SubscriptionActionActivate    SubscriptionAction = "activate"
	SubscriptionActionPause       SubscriptionAction = "pause"
	SubscriptionActionClose       SubscriptionAction = "close"
	SubscriptionActionCancel      SubscriptionAction = "cancel"
	SubscriptionActionBackToDraft SubscriptionAction = "back_to_draft"
)

// subscriptionTransition describes the single authoritative transition
// table. Every status change must go through NextSubscriptionStatus so
// there is exactly one place where legality is decided.
type subscriptionTransition struct {
	From []SubscriptionStatus
	To   SubscriptionStatus
}

var subscriptionTransitions = map[SubscriptionAction]subscriptionTransition{
	SubscriptionActionToQuotation: {
		From: []SubscriptionStatus{SubscriptionStatusDraft},
		To:   SubscriptionStatusQuotation,
	},
	SubscriptionActionConfirm: {
		From: []SubscriptionStatus{SubscriptionStatusQuotation},
		To:   SubscriptionStatusConfirmed,
	},
	SubscriptionActionActivate: {
		From: []SubscriptionStatus{SubscriptionStatusConfirmed, SubscriptionStatusPaused},
		To:   SubscriptionStatusActive,
	},
	SubscriptionActionPause: {
		From: []SubscriptionStatus{SubscriptionStatusActive},
		To:   SubscriptionStatusPaused,
	},
	SubscriptionActionClose: {
		From: []SubscriptionStatus{SubscriptionStatusConfirmed, SubscriptionStatusActive, SubscriptionStatusPaused},
		To:   SubscriptionStatusClosed,
	},
	SubscriptionActionCancel: {
		From: []SubscriptionStatus{SubscriptionStatusConfirmed, SubscriptionStatusActive, SubscriptionStatusPaused},
		To:   SubscriptionStatusCancelled,
	},
	SubscriptionActionBackToDraft: {
		From: []SubscriptionStatus{SubscriptionStatusCancelled},
		To:   SubscriptionStatusDraft,
	},
}

// NextSubscriptionStatus resolves the target status for an action from
// the given source status, or an illegal transition error.
func NextSubscriptionStatus(from SubscriptionStatus, action SubscriptionAction) (SubscriptionStatus, error) {
	t, ok := subscriptionTransitions[action]
	if !ok {
		return "", ierr.NewError("unknown subscription action").
			WithHintf("Action %s is not a valid subscription action", action).
			Mark(ierr.ErrValidation)
	}
	if !lo.Contains(t.From, from) {
		return "", ierr.NewError("illegal subscription transition").
			WithHintf("Cannot %s a subscription in status %s", action, from).
			WithReportableDetails(map[string]any{
				"action":        action,
				"status":        from,
				"allowed_from":  t.From,
				"target_status": t.To,
			}).
			Mark(ierr.ErrIllegalTransition)
	}
	return t.To, nil
}
