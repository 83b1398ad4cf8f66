package rest

import (
	"time"

	"tinedy-api/res/store"
)

type statusEventResponse struct {
	Status    store.BookingStatus `json:"status"`
	ChangedAt time.Time           `json:"changedAt"`
	ChangedBy string              `json:"changedBy"`
	Reason    *string             `json:"reason,omitempty"`
	Notes     *string             `json:"notes,omitempty"`
}

type changeResponse struct {
	ChangedAt time.Time           `json:"changedAt"`
	ChangedBy string              `json:"changedBy"`
	Changes   []store.FieldChange `json:"changes"`
}

type bookingResponse struct {
	ID             string                 `json:"id"`
	Customer       store.CustomerSnapshot `json:"customer"`
	Service        store.ServiceInfo      `json:"service"`
	Schedule       store.Schedule         `json:"schedule"`
	AssignedTo     *store.Assignment      `json:"assignedTo"`
	Status         store.BookingStatus    `json:"status"`
	StatusHistory  []statusEventResponse  `json:"statusHistory"`
	Notes          *string                `json:"notes,omitempty"`
	DuplicatedFrom *string                `json:"duplicatedFrom,omitempty"`
	DuplicatedTo   []string               `json:"duplicatedTo"`
	ChangeHistory  []changeResponse       `json:"changeHistory,omitempty"`
	CompletedAt    *time.Time             `json:"completedAt,omitempty"`
	CancelledAt    *time.Time             `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	CreatedBy      string                 `json:"createdBy"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	UpdatedBy      string                 `json:"updatedBy"`
}

func toBookingResponse(b *store.Booking) *bookingResponse {
	if b == nil {
		return nil
	}

	history := make([]statusEventResponse, 0, len(b.StatusHistory))
	for _, e := range b.StatusHistory {
		history = append(history, statusEventResponse{
			Status:    e.Status,
			ChangedAt: e.ChangedAt,
			ChangedBy: e.ChangedBy,
			Reason:    e.Reason,
			Notes:     e.Notes,
		})
	}

	var changes []changeResponse
	for _, c := range b.ChangeHistory {
		changes = append(changes, changeResponse{ChangedAt: c.ChangedAt, ChangedBy: c.ChangedBy, Changes: c.Changes})
	}

	service := b.Service
	if service.RequiredSkills == nil {
		service.RequiredSkills = []string{}
	}

	return &bookingResponse{
		ID:             b.ID,
		Customer:       b.Customer,
		Service:        service,
		Schedule:       b.Schedule,
		AssignedTo:     b.AssignedTo(),
		Status:         b.Status,
		StatusHistory:  history,
		Notes:          b.Notes,
		DuplicatedFrom: b.DuplicatedFrom,
		DuplicatedTo:   b.DuplicatedTo(),
		ChangeHistory:  changes,
		CompletedAt:    b.CompletedAt,
		CancelledAt:    b.CancelledAt,
		CreatedAt:      b.CreatedAt,
		CreatedBy:      b.CreatedBy,
		UpdatedAt:      b.UpdatedAt,
		UpdatedBy:      b.UpdatedBy,
	}
}

func toBookingResponses(bookings []*store.Booking) []*bookingResponse {
	out := make([]*bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return out
}
