package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

func TestAggregate(t *testing.T) {
	all := []models.ApprovalChannel{models.ChannelAdmin, models.ChannelSupervisor, models.ChannelGEC}

	tests := []struct {
		name     string
		required []models.ApprovalChannel
		snapshot map[models.ApprovalChannel]models.ChannelStatus
		want     models.SubmissionStatus
	}{
		{
			name:     "no decisions stays submitted",
			required: all,
			snapshot: map[models.ApprovalChannel]models.ChannelStatus{
				models.ChannelAdmin:      models.ChannelPending,
				models.ChannelSupervisor: models.ChannelPending,
				models.ChannelGEC:        models.ChannelPending,
			},
			want: models.SubmissionSubmitted,
		},
		{
			name:     "partial approval is under review",
			required: all,
			snapshot: map[models.ApprovalChannel]models.ChannelStatus{
				models.ChannelAdmin:      models.ChannelApproved,
				models.ChannelSupervisor: models.ChannelPending,
				models.ChannelGEC:        models.ChannelPending,
			},
			want: models.SubmissionUnderReview,
		},
		{
			name:     "all required approved",
			required: all,
			snapshot: map[models.ApprovalChannel]models.ChannelStatus{
				models.ChannelAdmin:      models.ChannelApproved,
				models.ChannelSupervisor: models.ChannelApproved,
				models.ChannelGEC:        models.ChannelApproved,
			},
			want: models.SubmissionApproved,
		},
		{
			name:     "single rejection wins over approvals",
			required: all,
			snapshot: map[models.ApprovalChannel]models.ChannelStatus{
				models.ChannelAdmin:      models.ChannelApproved,
				models.ChannelSupervisor: models.ChannelRejected,
				models.ChannelGEC:        models.ChannelApproved,
			},
			want: models.SubmissionRejected,
		},
		{
			name:     "rejection with remaining pending channels",
			required: all,
			snapshot: map[models.ApprovalChannel]models.ChannelStatus{
				models.ChannelAdmin:      models.ChannelRejected,
				models.ChannelSupervisor: models.ChannelPending,
				models.ChannelGEC:        models.ChannelPending,
			},
			want: models.SubmissionRejected,
		},
		{
			name:     "non-required channels are ignored",
			required: []models.ApprovalChannel{models.ChannelSupervisor},
			snapshot: map[models.ApprovalChannel]models.ChannelStatus{
				models.ChannelAdmin:      models.ChannelNotApplicable,
				models.ChannelSupervisor: models.ChannelApproved,
				models.ChannelGEC:        models.ChannelNotApplicable,
			},
			want: models.SubmissionApproved,
		},
		{
			name:     "zero required channels is vacuously approved",
			required: nil,
			snapshot: map[models.ApprovalChannel]models.ChannelStatus{},
			want:     models.SubmissionApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.required, tt.snapshot))
		})
	}
}

func TestAggregateOrderIndependence(t *testing.T) {
	required := []models.ApprovalChannel{models.ChannelAdmin, models.ChannelSupervisor, models.ChannelGEC}

	// Rejection forces rejected no matter which channel carries it or what
	// the others hold.
	states := []models.ChannelStatus{models.ChannelPending, models.ChannelApproved, models.ChannelRejected}
	for _, a := range states {
		for _, b := range states {
			for _, c := range states {
				snapshot := map[models.ApprovalChannel]models.ChannelStatus{
					models.ChannelAdmin:      a,
					models.ChannelSupervisor: b,
					models.ChannelGEC:        c,
				}
				got := Aggregate(required, snapshot)
				if a == models.ChannelRejected || b == models.ChannelRejected || c == models.ChannelRejected {
					assert.Equal(t, models.SubmissionRejected, got, "snapshot %v", snapshot)
				} else {
					assert.NotEqual(t, models.SubmissionRejected, got, "snapshot %v", snapshot)
				}
			}
		}
	}
}
