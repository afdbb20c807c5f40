package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindTransition(t *testing.T) {
	tests := []struct {
		name          string
		from          Status
		to            Status
		wantOK        bool
		wantActor     Role
		wantAssignReq bool
	}{
		{
			name:      "customer submits payment proof",
			from:      StatusPending,
			to:        StatusConfirmationPending,
			wantOK:    true,
			wantActor: RoleCustomer,
		},
		{
			name:      "admin approves payment",
			from:      StatusConfirmationPending,
			to:        StatusInProduction,
			wantOK:    true,
			wantActor: RoleAdmin,
		},
		{
			name:      "admin rejects payment back to pending",
			from:      StatusConfirmationPending,
			to:        StatusPending,
			wantOK:    true,
			wantActor: RoleAdmin,
		},
		{
			name:          "operator starts cutting",
			from:          StatusInProduction,
			to:            StatusCutting,
			wantOK:        true,
			wantActor:     RoleOperator,
			wantAssignReq: true,
		},
		{
			name:   "skipping a production step is not an edge",
			from:   StatusCutting,
			to:     StatusPackaging,
			wantOK: false,
		},
		{
			name:   "cancelling after production start is not an edge",
			from:   StatusCutting,
			to:     StatusCancelled,
			wantOK: false,
		},
		{
			name:   "no edge leaves delivered",
			from:   StatusDelivered,
			to:     StatusPending,
			wantOK: false,
		},
		{
			name:   "no edge leaves cancelled",
			from:   StatusCancelled,
			to:     StatusPending,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := FindTransition(tt.from, tt.to)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantActor, tr.Actor)
				assert.Equal(t, tt.wantAssignReq, tr.NeedsAssignment)
			}
		})
	}
}

func TestNextProductionStatus(t *testing.T) {
	chain := map[Status]Status{
		StatusInProduction:   StatusCutting,
		StatusCutting:        StatusPostProcessing,
		StatusPostProcessing: StatusQualityCheck,
		StatusQualityCheck:   StatusPackaging,
		StatusPackaging:      StatusShipped,
	}

	for from, want := range chain {
		next, ok := NextProductionStatus(from)
		assert.True(t, ok, "expected production edge from %s", from)
		assert.Equal(t, want, next)
	}

	for _, s := range []Status{StatusPending, StatusConfirmationPending, StatusShipped, StatusDelivered, StatusCancelled} {
		_, ok := NextProductionStatus(s)
		assert.False(t, ok, "unexpected production edge from %s", s)
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			if _, ok := FindTransition(from, to); ok {
				assert.False(t, from.Terminal(), "terminal status %s must not have an edge to %s", from, to)
			}
		}
	}
}

func TestStatusLabelIsTotal(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range AllStatuses() {
		label := s.Label()
		assert.NotEmpty(t, label)
		assert.NotEqual(t, string(s), label, "status %s must have a display label distinct from its raw value", s)
		assert.False(t, seen[label], "duplicate label %q", label)
		seen[label] = true
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("quality_check")
	assert.NoError(t, err)
	assert.Equal(t, StatusQualityCheck, s)

	_, err = ParseStatus("melting")
	assert.ErrorIs(t, err, ErrValidation)
}
