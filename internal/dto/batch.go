package dto

import "time"

// Batch item states.
const (
	BatchStatePending = "PENDING"
	BatchStateDone    = "DONE"
	BatchStateFailed  = "FAILED"
)

// BatchRequest generates timetables for several courses in the background.
type BatchRequest struct {
	CourseIDs []string `json:"courseIds" validate:"required,min=1,dive,required"`
	Seed      *int64   `json:"seed"`
}

// BatchItem tracks one course of a batch.
type BatchItem struct {
	CourseID    string `json:"courseId"`
	State       string `json:"state"`
	TimetableID string `json:"timetableId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchStatus reports progress of a batch.
type BatchStatus struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"createdAt"`
	Items     []BatchItem `json:"items"`
}

// Done reports whether no item is pending.
func (s BatchStatus) Done() bool {
	for _, item := range s.Items {
		if item.State == BatchStatePending {
			return false
		}
	}
	return true
}
