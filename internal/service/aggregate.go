package service

import "github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"

// Aggregate derives a submission's overall status from its per-channel
// approval snapshot. The rule set:
//
//   - a single rejected required channel makes the submission rejected,
//     regardless of the other channels or update order;
//   - approved requires every required channel to be approved (channels the
//     form does not require are vacuously satisfied);
//   - any recorded decision short of full approval leaves the submission
//     under review;
//   - no decisions at all keeps the submission in its initial submitted state.
//
// The function is pure: it depends only on the snapshot passed in, never on
// history. Callers must evaluate it against the authoritative current row.
func Aggregate(required []models.ApprovalChannel, snapshot map[models.ApprovalChannel]models.ChannelStatus) models.SubmissionStatus {
	approved := 0
	decided := 0
	for _, channel := range required {
		switch snapshot[channel] {
		case models.ChannelRejected:
			return models.SubmissionRejected
		case models.ChannelApproved:
			approved++
			decided++
		}
	}

	if approved == len(required) {
		return models.SubmissionApproved
	}
	if decided > 0 {
		return models.SubmissionUnderReview
	}
	return models.SubmissionSubmitted
}
