package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinic-booking/internal/model"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to model.Status
		ok       bool
	}{
		{model.StatusPending, model.StatusConfirmed, true},
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusPending, model.StatusPending, false},
		{model.StatusConfirmed, model.StatusCancelled, false},
		{model.StatusConfirmed, model.StatusPending, false},
		{model.StatusCancelled, model.StatusConfirmed, false},
		{model.StatusPending, model.Status("completed"), false},
		{model.Status(""), model.StatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
			err := CheckTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestSourcesAndNext(t *testing.T) {
	assert.Equal(t, []model.Status{model.StatusPending}, SourcesFor(model.StatusConfirmed))
	assert.Empty(t, SourcesFor(model.StatusPending))
	assert.ElementsMatch(t, []model.Status{model.StatusConfirmed, model.StatusCancelled}, NextStatuses(model.StatusPending))
	assert.Empty(t, NextStatuses(model.StatusCancelled))
}
