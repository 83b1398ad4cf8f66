package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tinedy-api/res/store"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	DefaultPageSize = 20
	MinPageSize     = 10
	MaxPageSize     = 100
	MaxPage         = 1000

	// maxClientWindow bounds how many rows are fetched when filtering in process
	maxClientWindow = 1000
)

const (
	SortCustomerName  = "customer.name"
	SortStaffName     = "assignedTo.staffName"
	ServiceTypeAll    = "all"
	PaginationCursor  = "cursor"
	PaginationOffsets = "offset"
)

type ListFilters struct {
	Status      string // Comma separated
	Date        string
	StartDate   string
	EndDate     string
	CustomerID  string
	ServiceType string
	Search      string
}

type Sort struct {
	Field      string
	Descending bool
}

var DefaultSort = Sort{Field: string(store.BookingSortScheduleDate)}

type Page struct {
	Page      int
	Limit     int
	UseCursor bool
	Cursor    string
}

// ParsePage validates raw pagination parameters. Empty values take their defaults.
func ParsePage(page, limit, useCursor, cursor string) (Page, error) {
	p := Page{Page: 1, Limit: DefaultPageSize, Cursor: strings.TrimSpace(cursor)}
	v := &ValidationError{}

	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 || n > MaxPage {
			v.add("page", fmt.Sprintf("page must be an integer between 1 and %d", MaxPage))
		} else {
			p.Page = n
		}
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < MinPageSize || n > MaxPageSize {
			v.add("limit", fmt.Sprintf("limit must be an integer between %d and %d", MinPageSize, MaxPageSize))
		} else {
			p.Limit = n
		}
	}
	if useCursor != "" {
		b, err := strconv.ParseBool(useCursor)
		if err != nil {
			v.add("useCursor", "useCursor must be true or false")
		} else {
			p.UseCursor = b
		}
	}

	return p, v.orNil()
}

// ParseSort reads "field" plus "asc" or "desc". An empty field gives DefaultSort.
func ParseSort(field, direction string) (Sort, error) {
	if field == "" {
		field = DefaultSort.Field
	}
	switch strings.ToLower(direction) {
	case "", "asc":
		return Sort{Field: field}, nil
	case "desc":
		return Sort{Field: field, Descending: true}, nil
	}
	return Sort{}, &ValidationError{Fields: map[string]string{"sortOrder": "sortOrder must be asc or desc"}}
}

type PaginationMeta struct {
	Mode            string  `json:"mode"`
	Page            int     `json:"page"`
	Limit           int     `json:"limit"`
	Total           *int64  `json:"total,omitempty"`
	TotalPages      *int64  `json:"totalPages,omitempty"`
	TotalUnfiltered *int64  `json:"totalUnfiltered,omitempty"`
	HasMore         bool    `json:"hasMore"`
	NextCursor      *string `json:"nextCursor,omitempty"`
	PrevCursor      *string `json:"prevCursor,omitempty"`
}

type ListResult struct {
	Bookings   []*store.Booking `json:"bookings"`
	Pagination PaginationMeta   `json:"pagination"`
}

// listPlan is the resolved form of a list request
type listPlan struct {
	query       store.BookingQuery
	serviceType store.ServiceType
	search      string
	clientSort  *Sort
	page        Page
	describe    string
}

func (p *listPlan) clientFiltered() bool {
	return p.serviceType != "" || p.search != ""
}

type listStats struct {
	fetched  int
	filtered int
	storeDur time.Duration
	search   time.Duration
}

// listStrategy is one pagination mode
type listStrategy interface {
	name() string
	list(ctx context.Context, s *Service, p *listPlan, stats *listStats) (*ListResult, error)
}

type cursorStrategy struct {
	cursor string
}

type offsetStrategy struct{}

// chooseStrategy uses cursor mode only when it was asked for and every filter runs in
// the store, since a cursor cannot skip rows that are dropped afterwards
func chooseStrategy(p *listPlan) listStrategy {
	if p.page.UseCursor && !p.clientFiltered() {
		return cursorStrategy{cursor: p.page.Cursor}
	}
	return offsetStrategy{}
}

// ListBookings filters, sorts and paginates bookings
func (s *Service) ListBookings(ctx context.Context, filters ListFilters, order Sort, page Page) (*ListResult, error) {
	started := s.Now()

	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit <= 0 {
		page.Limit = DefaultPageSize
	}

	plan := s.planList(filters, order, page)
	strategy := chooseStrategy(plan)

	stats := &listStats{}
	result, err := strategy.list(ctx, s, plan, stats)
	if err != nil {
		return nil, err
	}

	s.Logger.Printf("Bookings query: mode=%s query=%s fetched=%d filtered=%d store=%dms search=%dms total=%dms",
		result.Pagination.Mode, plan.describe, stats.fetched, stats.filtered,
		stats.storeDur.Milliseconds(), stats.search.Milliseconds(), s.Now().Sub(started).Milliseconds())
	return result, nil
}

func (s *Service) planList(filters ListFilters, order Sort, page Page) *listPlan {
	q := store.BookingQuery{
		Statuses:   s.parseStatuses(filters.Status),
		CustomerID: strings.TrimSpace(filters.CustomerID),
	}

	if date := strings.TrimSpace(filters.Date); date != "" {
		q.Date = date
	} else if from, to := strings.TrimSpace(filters.StartDate), strings.TrimSpace(filters.EndDate); from != "" && to != "" {
		q.DateFrom, q.DateTo = from, to
	}

	plan := &listPlan{page: page}
	switch field := store.BookingSortField(order.Field); field {
	case store.BookingSortScheduleDate, store.BookingSortCreatedAt, store.BookingSortStatus:
		q.OrderBy, q.Descending = field, order.Descending
	default:
		q.OrderBy, q.Descending = store.BookingSortCreatedAt, true
		if order.Field == SortCustomerName || order.Field == SortStaffName {
			clientSort := order
			plan.clientSort = &clientSort
		}
	}

	if st := strings.TrimSpace(filters.ServiceType); st != "" && st != ServiceTypeAll {
		plan.serviceType = store.ServiceType(st)
	}
	plan.search = strings.TrimSpace(filters.Search)
	plan.query = q
	plan.describe = describeQuery(q, plan)
	return plan
}

// parseStatuses splits a comma list. More values than the store accepts in one
// membership filter are truncated.
func (s *Service) parseStatuses(raw string) []store.BookingStatus {
	var statuses []store.BookingStatus
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			statuses = append(statuses, store.BookingStatus(part))
		}
	}
	if len(statuses) > store.MaxInFilterValues {
		s.Logger.Printf("Warning: status filter has %d values, only the first %d are applied", len(statuses), store.MaxInFilterValues)
		statuses = statuses[:store.MaxInFilterValues]
	}
	return statuses
}

func (c cursorStrategy) name() string { return PaginationCursor }

func (c cursorStrategy) list(ctx context.Context, s *Service, p *listPlan, stats *listStats) (*ListResult, error) {
	q := p.query
	q.After = c.cursor
	q.Limit = p.page.Limit

	storeStarted := s.Now()
	bookings, err := s.Store.Bookings().Find(ctx, q)
	stats.storeDur = s.Now().Sub(storeStarted)
	if errors.Is(err, store.ErrInvalidCursor) {
		s.Logger.Printf("Warning: Unknown cursor %q, falling back to offset pagination", c.cursor)
		return offsetStrategy{}.list(ctx, s, p, stats)
	}
	if err != nil {
		return nil, err
	}
	stats.fetched, stats.filtered = len(bookings), len(bookings)

	meta := PaginationMeta{
		Mode:    c.name(),
		Page:    p.page.Page,
		Limit:   p.page.Limit,
		HasMore: len(bookings) == p.page.Limit,
	}
	if len(bookings) > 0 {
		next, prev := bookings[len(bookings)-1].ID, bookings[0].ID
		meta.NextCursor, meta.PrevCursor = &next, &prev
	}

	// Cursors follow store order, the in-process sort only affects presentation
	if p.clientSort != nil {
		searchStarted := s.Now()
		sortByCollation(bookings, *p.clientSort)
		stats.search = s.Now().Sub(searchStarted)
	}

	return &ListResult{Bookings: bookings, Pagination: meta}, nil
}

func (o offsetStrategy) name() string { return PaginationOffsets }

func (o offsetStrategy) list(ctx context.Context, s *Service, p *listPlan, stats *listStats) (*ListResult, error) {
	skip := (p.page.Page - 1) * p.page.Limit

	// Filtering in process needs a bounded over-fetch. Without it the store
	// returns exactly the rows up to the end of the requested page.
	q := p.query
	q.After = ""
	if p.clientFiltered() {
		q.Limit = clientWindow(p.page)
	} else {
		q.Limit = skip + p.page.Limit
	}

	storeStarted := s.Now()
	bookings, err := s.Store.Bookings().Find(ctx, q)
	if err != nil {
		return nil, err
	}
	var total, totalUnfiltered int64
	if !p.clientFiltered() {
		count, err := s.Store.Bookings().Count(ctx, p.query)
		if err != nil {
			return nil, err
		}
		total, totalUnfiltered = count, count
	}
	stats.storeDur = s.Now().Sub(storeStarted)
	stats.fetched = len(bookings)

	if p.clientFiltered() || p.clientSort != nil {
		searchStarted := s.Now()
		bookings = filterBookings(bookings, p.serviceType, p.search)
		if p.clientSort != nil {
			sortByCollation(bookings, *p.clientSort)
		}
		stats.search = s.Now().Sub(searchStarted)
	}
	stats.filtered = len(bookings)

	if p.clientFiltered() {
		total, totalUnfiltered = int64(len(bookings)), int64(stats.fetched)
	}

	if skip >= len(bookings) {
		bookings = []*store.Booking{}
	} else {
		bookings = bookings[skip:min(skip+p.page.Limit, len(bookings))]
	}

	totalPages := (total + int64(p.page.Limit) - 1) / int64(p.page.Limit)
	return &ListResult{
		Bookings: bookings,
		Pagination: PaginationMeta{
			Mode:            o.name(),
			Page:            p.page.Page,
			Limit:           p.page.Limit,
			Total:           &total,
			TotalPages:      &totalPages,
			TotalUnfiltered: &totalUnfiltered,
			HasMore:         int64(p.page.Page*p.page.Limit) < total,
		},
	}, nil
}

// clientWindow is how many rows are fetched for a page filtered in process
func clientWindow(page Page) int {
	return min(page.Page*page.Limit*3, maxClientWindow)
}

// filterBookings applies the filters the store cannot evaluate. Text fields match
// case-insensitively, the phone number matches as typed.
func filterBookings(bookings []*store.Booking, serviceType store.ServiceType, search string) []*store.Booking {
	if serviceType == "" && search == "" {
		return bookings
	}
	needle := strings.ToLower(search)

	out := make([]*store.Booking, 0, len(bookings))
	for _, b := range bookings {
		if serviceType != "" && b.Service.Type != serviceType {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Customer.Name), needle) &&
			!strings.Contains(strings.ToLower(b.Customer.Email), needle) &&
			!strings.Contains(strings.ToLower(b.Customer.Address), needle) &&
			!strings.Contains(b.Customer.Phone, search) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// sortByCollation orders bookings by a display name using Thai collation rules
func sortByCollation(bookings []*store.Booking, order Sort) {
	c := collate.New(language.Thai)
	key := func(b *store.Booking) string {
		if order.Field == SortStaffName {
			if b.AssignedStaffName == nil {
				return ""
			}
			return *b.AssignedStaffName
		}
		return b.Customer.Name
	}

	sort.SliceStable(bookings, func(i, j int) bool {
		cmp := c.CompareString(key(bookings[i]), key(bookings[j]))
		if order.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

func describeQuery(q store.BookingQuery, p *listPlan) string {
	parts := []string{fmt.Sprintf("order=%s", q.OrderBy)}
	if q.Descending {
		parts[0] += " desc"
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		parts = append(parts, "status="+strings.Join(statuses, "|"))
	}
	if q.Date != "" {
		parts = append(parts, "date="+q.Date)
	}
	if q.DateFrom != "" {
		parts = append(parts, fmt.Sprintf("range=%s..%s", q.DateFrom, q.DateTo))
	}
	if q.CustomerID != "" {
		parts = append(parts, "customer="+q.CustomerID)
	}
	if p.serviceType != "" {
		parts = append(parts, "serviceType="+string(p.serviceType))
	}
	if p.search != "" {
		parts = append(parts, "search")
	}
	if p.clientSort != nil {
		parts = append(parts, "clientSort="+p.clientSort.Field)
	}
	return strings.Join(parts, ",")
}
