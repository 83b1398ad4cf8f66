package store

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"     // Initial state, awaiting confirmation
	BookingStatusConfirmed  BookingStatus = "confirmed"   // Confirmed with the customer
	BookingStatusInProgress BookingStatus = "in_progress" // Service is being performed
	BookingStatusCompleted  BookingStatus = "completed"   // Service completed successfully
	BookingStatusCancelled  BookingStatus = "cancelled"   // Cancelled, staff released
)

// ServiceType is the top-level service family
type ServiceType string

const (
	ServiceTypeCleaning ServiceType = "cleaning"
	ServiceTypeTraining ServiceType = "training"
)

// CancellationReason lists the reasons the admin UI offers. Free text is accepted as well.
type CancellationReason string

const (
	CancellationReasonCustomerCancelled CancellationReason = "customer_cancelled"
	CancellationReasonStaffUnavailable  CancellationReason = "staff_unavailable"
	CancellationReasonRescheduled       CancellationReason = "rescheduled"
	CancellationReasonCustomerNoShow    CancellationReason = "customer_no_show"
	CancellationReasonOther             CancellationReason = "other"
)

// CustomerSnapshot is copied into the booking at creation time and is not kept
// in sync with the customer master record.
type CustomerSnapshot struct {
	ID      string `gorm:"size:50;index:idx_booking_customer" json:"id,omitempty"`
	Name    string `gorm:"size:200;not null" json:"name"`
	Phone   string `gorm:"size:20;not null" json:"phone"`
	Email   string `gorm:"size:256" json:"email,omitempty"`
	Address string `gorm:"type:text;not null" json:"address"`
}

type ServiceInfo struct {
	Type              ServiceType                 `gorm:"size:20;not null" json:"type"`
	Category          string                      `gorm:"size:50;not null" json:"category"`
	Name              string                      `gorm:"size:200;not null" json:"name"`
	RequiredSkills    datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"requiredSkills"`
	EstimatedDuration int                         `gorm:"not null" json:"estimatedDuration"` // Minutes
}

type Schedule struct {
	Date      string `gorm:"size:10;not null;index:idx_booking_date" json:"date"` // YYYY-MM-DD
	StartTime string `gorm:"size:5;not null" json:"startTime"`                    // HH:MM
	EndTime   string `gorm:"size:5;not null" json:"endTime"`                      // Derived from duration
}

type Assignment struct {
	StaffID    string    `json:"staffId"`
	StaffName  string    `json:"staffName"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Booking represents a service booking
type Booking struct {
	ID       string           `gorm:"primaryKey;size:50;unique"`
	Customer CustomerSnapshot `gorm:"embedded;embeddedPrefix:customer_"`
	Service  ServiceInfo      `gorm:"embedded;embeddedPrefix:service_"`
	Schedule Schedule         `gorm:"embedded;embeddedPrefix:schedule_"`

	// Assignment, all three are set or all three are NULL
	AssignedStaffID   *string `gorm:"size:50"`
	AssignedStaffName *string `gorm:"size:200"`
	AssignedAt        *time.Time

	Status        BookingStatus        `gorm:"size:20;not null;default:'pending';index:idx_booking_status"`
	StatusHistory []BookingStatusEvent `gorm:"foreignKey:BookingID"`
	Notes         *string              `gorm:"type:text"`

	// Terminal metadata
	CompletedAt *time.Time
	CancelledAt *time.Time

	// Duplication links
	DuplicatedFrom *string       `gorm:"size:50;index:idx_booking_duplicated_from"`
	Duplicates     []BookingLink `gorm:"foreignKey:OriginalID"`

	ChangeHistory []BookingChange `gorm:"foreignKey:BookingID"`

	CreatedAt time.Time `gorm:"not null;index:idx_booking_created"`
	CreatedBy string    `gorm:"size:50;not null"`
	UpdatedAt time.Time `gorm:"not null"`
	UpdatedBy string    `gorm:"size:50;not null"`
}

// AssignedTo returns the current staff assignment, or nil when unassigned.
func (b *Booking) AssignedTo() *Assignment {
	if b.AssignedStaffID == nil {
		return nil
	}
	a := &Assignment{StaffID: *b.AssignedStaffID}
	if b.AssignedStaffName != nil {
		a.StaffName = *b.AssignedStaffName
	}
	if b.AssignedAt != nil {
		a.AssignedAt = *b.AssignedAt
	}
	return a
}

// DuplicatedTo returns the ids of the bookings copied from this one, in link order.
func (b *Booking) DuplicatedTo() []string {
	ids := make([]string, 0, len(b.Duplicates))
	for _, link := range b.Duplicates {
		ids = append(ids, link.DuplicateID)
	}
	return ids
}

// BookingStatusEvent is one entry of a booking's append-only status history
type BookingStatusEvent struct {
	ID        int64         `gorm:"primaryKey;autoIncrement"`
	BookingID string        `gorm:"size:50;not null;index:idx_status_event_booking"`
	Status    BookingStatus `gorm:"size:20;not null"`
	ChangedAt time.Time     `gorm:"not null"`
	ChangedBy string        `gorm:"size:50;not null"`
	Reason    *string       `gorm:"type:text"`
	Notes     *string       `gorm:"type:text"`
}

// BookingLink records that DuplicateID was copied from OriginalID.
// The composite primary key makes appending an existing pair a no-op.
type BookingLink struct {
	OriginalID  string    `gorm:"primaryKey;size:50"`
	DuplicateID string    `gorm:"primaryKey;size:50"`
	CreatedAt   time.Time `gorm:"autoCreateTime;not null"`
}

type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// BookingChange is one entry of the edit audit log
type BookingChange struct {
	ID        string                           `gorm:"primaryKey;size:50"`
	BookingID string                           `gorm:"size:50;not null;index:idx_booking_change_booking"`
	ChangedAt time.Time                        `gorm:"not null"`
	ChangedBy string                           `gorm:"size:50;not null"`
	Changes   datatypes.JSONSlice[FieldChange] `gorm:"type:jsonb;not null"`
}

// BookingUpdates is a merge-update: only the fields that are set are written
type BookingUpdates struct {
	Status          *BookingStatus
	Customer        *CustomerSnapshot
	Service         *ServiceInfo
	Schedule        *Schedule
	Notes           *string
	Assignment      *Assignment
	ClearAssignment bool
	CompletedAt     *time.Time
	CancelledAt     *time.Time

	UpdatedAt time.Time
	UpdatedBy string
}

// BookingSortField lists the fields the store can order by
type BookingSortField string

const (
	BookingSortScheduleDate BookingSortField = "schedule.date"
	BookingSortCreatedAt    BookingSortField = "createdAt"
	BookingSortStatus       BookingSortField = "status"
)

// MaxInFilterValues bounds the membership filter on status
const MaxInFilterValues = 10

// BookingQuery describes a store-level booking lookup. Zero values mean "no filter".
type BookingQuery struct {
	Statuses   []BookingStatus // One value filters by equality, several by membership
	Date       string          // Exact schedule date
	DateFrom   string          // Inclusive, applied together with DateTo
	DateTo     string
	CustomerID string

	OrderBy    BookingSortField
	Descending bool

	After string // Seek strictly after this booking id in the current order
	Limit int
}

// BookingStore defines the data access interface for bookings
type BookingStore interface {
	// Get retrieves a booking by ID with its history and links
	Get(ctx context.Context, id string) (*Booking, error)

	// GetForUpdate retrieves a booking and locks its row until the surrounding transaction ends
	GetForUpdate(ctx context.Context, id string) (*Booking, error)

	// Create inserts a booking together with its seeded status history
	Create(ctx context.Context, booking *Booking) error

	// Update merges the set fields of updates into the booking
	Update(ctx context.Context, id string, updates BookingUpdates) error

	AppendStatusEvent(ctx context.Context, event *BookingStatusEvent) error
	AppendChange(ctx context.Context, change *BookingChange) error

	// AddDuplicate appends duplicateID to the original's duplicatedTo set
	AddDuplicate(ctx context.Context, originalID, duplicateID string) error

	Find(ctx context.Context, query BookingQuery) ([]*Booking, error)
	Count(ctx context.Context, query BookingQuery) (int64, error)

	// LoadMany fetches several bookings by id in one batch. Missing ids are skipped.
	LoadMany(ctx context.Context, ids []string) ([]*Booking, error)
}
