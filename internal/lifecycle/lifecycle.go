// Package lifecycle is the assessment state machine. Evaluate is pure: it
// decides whether a transition may happen and what it leads to, and the
// caller performs the mutation.
package lifecycle

import (
	"fmt"

	"landrace-threat/internal/errs"
	"landrace-threat/internal/models"
)

// Transition is an action on an assessment
type Transition string

const (
	Submit  Transition = "submit"
	Return  Transition = "return"
	Approve Transition = "approve"
	Comment Transition = "comment"
	Edit    Transition = "edit"
	Delete  Transition = "delete"
)

// Input is everything Evaluate needs to know about the current record
type Input struct {
	Current      models.Status
	Caps         models.Capabilities
	CommentCount int
}

// Outcome describes an accepted transition
type Outcome struct {
	Transition Transition
	From       models.Status
	To         models.Status
	// Notify is the notification to emit, empty when none
	Notify models.NotificationType
}

// StatusChanged reports whether the transition moves the record
func (o Outcome) StatusChanged() bool {
	return o.From != o.To
}

// participant is checked before the source status, so actors failing it are
// rejected whatever the current status is.
type rule struct {
	from          []models.Status // nil means any status
	to            models.Status   // empty keeps the current status
	participant   func(models.Capabilities) bool
	allowed       func(models.Capabilities) bool
	capability    string
	notify        models.NotificationType
	needsFeedback bool
}

func workflowParticipant(c models.Capabilities) bool { return c.CanEdit || c.CanReview }
func canEdit(c models.Capabilities) bool { return c.CanEdit }
func canReview(c models.Capabilities) bool { return c.CanReview }
func canComment(c models.Capabilities) bool { return c.CanComment }

var rules = map[Transition]rule{
	Submit: {
		from:        []models.Status{models.StatusDraft, models.StatusReturned},
		to:          models.StatusPendingReview,
		participant: workflowParticipant,
		allowed:     canEdit,
		capability:  "edit",
		notify:      models.NotificationSubmitted,
	},
	Return: {
		from:          []models.Status{models.StatusPendingReview},
		to:            models.StatusReturned,
		participant:   workflowParticipant,
		allowed:       canReview,
		capability:    "review",
		notify:        models.NotificationReturned,
		needsFeedback: true,
	},
	Approve: {
		from:        []models.Status{models.StatusPendingReview},
		to:          models.StatusApproved,
		participant: workflowParticipant,
		allowed:     canReview,
		capability:  "review",
		notify:      models.NotificationApproved,
	},
	Comment: {
		participant: canComment,
		allowed:     canComment,
		capability:  "comment",
	},
	Edit: {
		from:        []models.Status{models.StatusDraft, models.StatusReturned},
		participant: workflowParticipant,
		allowed:     canEdit,
		capability:  "edit",
	},
	Delete: {
		from:        []models.Status{models.StatusDraft, models.StatusPendingReview, models.StatusReturned},
		participant: workflowParticipant,
		allowed:     canEdit,
		capability:  "edit",
	},
}

// Evaluate checks a transition against the current record. Checks run in a
// fixed order: team participation (Forbidden), source status
// (InvalidTransition), the transition's capability (Forbidden), and the
// feedback gate for returns (ValidationError). Spectators and non-members
// therefore get Forbidden for submit, return and approve even when the
// current status would also reject the transition.
func Evaluate(t Transition, in Input) (Outcome, error) {
	r, ok := rules[t]
	if !ok {
		return Outcome{}, errs.New(errs.KindInvalidTransition, "unknown transition %q", t)
	}

	if !r.participant(in.Caps) {
		return Outcome{}, errs.Forbidden("not permitted to %s this assessment", t)
	}

	if r.from != nil && !containsStatus(r.from, in.Current) {
		return Outcome{}, errs.New(errs.KindInvalidTransition, "cannot %s an assessment in status %s", t, in.Current)
	}

	if !r.allowed(in.Caps) {
		return Outcome{}, errs.Forbidden("%s requires the %s capability", t, r.capability)
	}

	if r.needsFeedback && in.CommentCount < 1 {
		return Outcome{}, errs.Validation("at least one comment is required before returning an assessment")
	}

	to := r.to
	if to == "" {
		to = in.Current
	}
	return Outcome{Transition: t, From: in.Current, To: to, Notify: r.notify}, nil
}

// Sources returns the statuses a transition may start from, nil for any
func Sources(t Transition) []models.Status {
	return rules[t].from
}

// ParseTransition converts a string into a known Transition
func ParseTransition(s string) (Transition, error) {
	t := Transition(s)
	if _, ok := rules[t]; !ok {
		return "", fmt.Errorf("unknown transition %q", s)
	}
	return t, nil
}

func containsStatus(list []models.Status, s models.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
