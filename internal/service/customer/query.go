// internal/service/customer/query.go
package customer

import (
	"context"
	"fmt"

	"leadcrm-service/internal/domain/changelog"
	"leadcrm-service/internal/domain/customer"
)

// GetCustomer retrieves a record by primary key.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*customer.Record, error) {
	return s.store.GetByID(ctx, id)
}

// ListCustomers retrieves records with filters and pagination defaults.
func (s *Service) ListCustomers(ctx context.Context, filters *customer.ListFilters) (*customer.ListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	records, total, err := s.store.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &customer.ListResponse{
		Customers:  records,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// GetStats retrieves record statistics, optionally scoped to one queue.
func (s *Service) GetStats(ctx context.Context, queue string) (*customer.CustomerStats, error) {
	stats, err := s.store.Stats(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer stats: %w", err)
	}
	return stats, nil
}

// GetChangeLog retrieves the audit trail of one record.
func (s *Service) GetChangeLog(ctx context.Context, customerID int64) ([]changelog.Entry, error) {
	entries, err := s.store.ListChangeLog(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list change log: %w", err)
	}
	return entries, nil
}
