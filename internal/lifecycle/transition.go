package lifecycle

import (
	"errors"
	"fmt"

	"clinic-booking/internal/model"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the moves a viewer may make. confirmed and cancelled
// are terminal.
var transitions = map[model.Status][]model.Status{
	model.StatusPending: {model.StatusConfirmed, model.StatusCancelled},
}

func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CheckTransition(from, to model.Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// SourcesFor returns every status that may move to `to`.
func SourcesFor(to model.Status) []model.Status {
	var out []model.Status
	for from, targets := range transitions {
		for _, t := range targets {
			if t == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// NextStatuses returns what the UI should offer for an appointment in from.
func NextStatuses(from model.Status) []model.Status {
	return append([]model.Status(nil), transitions[from]...)
}
