package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"tinedy-api/res/store"
	"tinedy-api/sys/booking"
	"tinedy-api/sys/http/middleware"

	"github.com/go-chi/chi/v5"
)

const maxRequestBodyBytes = 1 << 20

func (s *Server) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := booking.ParsePage(q.Get("page"), q.Get("limit"), q.Get("useCursor"), q.Get("cursor"))
	if err != nil {
		s.writeServiceError(w, "list bookings", err)
		return
	}
	order, err := booking.ParseSort(q.Get("sortBy"), q.Get("sortOrder"))
	if err != nil {
		s.writeServiceError(w, "list bookings", err)
		return
	}

	filters := booking.ListFilters{
		Status:      q.Get("status"),
		Date:        q.Get("date"),
		StartDate:   q.Get("startDate"),
		EndDate:     q.Get("endDate"),
		CustomerID:  q.Get("customerId"),
		ServiceType: q.Get("serviceType"),
		Search:      q.Get("search"),
	}

	result, err := s.Bookings.ListBookings(r.Context(), filters, order, page)
	if err != nil {
		s.writeServiceError(w, "list bookings", err)
		return
	}

	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{
		"success":    true,
		"bookings":   toBookingResponses(result.Bookings),
		"pagination": result.Pagination,
	})
}

func (s *Server) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.Bookings.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get booking", err)
		return
	}
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{"success": true, "booking": toBookingResponse(b)})
}

func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var in booking.CreateInput
	if !s.decodeBody(w, r, &in) {
		return
	}

	b, err := s.Bookings.CreateBooking(r.Context(), in, principal.UID)
	if err != nil {
		s.writeServiceError(w, "create booking", err)
		return
	}
	middleware.WriteJSON(w, s.Logger, http.StatusCreated, map[string]any{"success": true, "booking": toBookingResponse(b)})
}

func (s *Server) EditBooking(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var in booking.EditInput
	if !s.decodeBody(w, r, &in) {
		return
	}
	if in.Status != nil {
		if _, ok := booking.ParseStatus(string(*in.Status)); !ok {
			s.writeValidationError(w, map[string]string{"status": "unknown status"})
			return
		}
		if *in.Status == store.BookingStatusCancelled && blank(in.StatusChangeReason) {
			s.writeValidationError(w, map[string]string{"statusChangeReason": "a reason is required to cancel a booking"})
			return
		}
	}

	b, err := s.Bookings.EditBooking(r.Context(), chi.URLParam(r, "id"), in, principal.UID)
	if err != nil {
		s.writeServiceError(w, "edit booking", err)
		return
	}
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{"success": true, "booking": toBookingResponse(b)})
}

type statusChangeRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
	Notes  *string `json:"notes"`
}

// UpdateStatus is rate limited per principal by the router
func (s *Server) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var req statusChangeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	status, ok := booking.ParseStatus(req.Status)
	if !ok {
		s.writeValidationError(w, map[string]string{"status": "status must be one of pending, confirmed, in_progress, completed, cancelled"})
		return
	}
	if status == store.BookingStatusCancelled && blank(req.Reason) {
		s.writeValidationError(w, map[string]string{"reason": "a reason is required to cancel a booking"})
		return
	}

	b, err := s.Bookings.UpdateStatus(r.Context(), booking.StatusChangeInput{
		BookingID: chi.URLParam(r, "id"),
		Status:    status,
		Reason:    trimmed(req.Reason),
		Notes:     trimmed(req.Notes),
		UserID:    principal.UID,
	})
	if err != nil {
		s.writeServiceError(w, "update booking status", err)
		return
	}
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{"success": true, "booking": toBookingResponse(b)})
}

func (s *Server) PrepareDuplicate(w http.ResponseWriter, r *http.Request) {
	draft, err := s.Bookings.PrepareDuplicate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "prepare duplicate", err)
		return
	}
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{"success": true, "draft": draft})
}

func (s *Server) GetLinks(w http.ResponseWriter, r *http.Request) {
	original, duplicates, err := s.Bookings.GetLinkedBookings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get booking links", err)
		return
	}
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{
		"success":    true,
		"original":   toBookingResponse(original),
		"duplicates": toBookingResponses(duplicates),
	})
}

type assignRequest struct {
	StaffID   string `json:"staffId"`
	StaffName string `json:"staffName"`
}

func (s *Server) AssignStaff(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var req assignRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	b, err := s.Bookings.AssignStaff(r.Context(), chi.URLParam(r, "id"), req.StaffID, req.StaffName, principal.UID)
	if err != nil {
		s.writeServiceError(w, "assign staff", err)
		return
	}
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{"success": true, "booking": toBookingResponse(b)})
}

// decodeBody reads a JSON body into dst, writing the error response itself on failure
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}

	message := "request body must be valid JSON"
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		message = "request body is required"
	case errors.As(err, &maxBytes):
		message = "request body is too large"
	}
	s.writeValidationError(w, map[string]string{"body": message})
	return false
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func trimmed(s *string) *string {
	if blank(s) {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
