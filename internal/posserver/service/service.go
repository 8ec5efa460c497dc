package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"waiter-station/internal/common/logger"
	"waiter-station/internal/domain"
	"waiter-station/internal/posserver/repository"
)

// Publisher is the broker slice the service needs; *rabbitmq.Client
// implements it.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, persistent bool) error
}

// WaiterService implements the six waiter endpoints. All failures are folded
// into the result envelope (Status); the transport layer always answers 200.
type WaiterService struct {
	catalog repository.Catalog
	orders  repository.Orders
	broker  Publisher
	lg      *logger.Logger
	debug   bool

	mu       sync.Mutex
	sessions map[string]int64 // session token -> waiter id
}

func New(catalog repository.Catalog, orders repository.Orders, broker Publisher, debug bool) *WaiterService {
	return &WaiterService{
		catalog:  catalog,
		orders:   orders,
		broker:   broker,
		lg:       logger.New("waiter-service"),
		debug:    debug,
		sessions: make(map[string]int64),
	}
}

// Authenticate resolves a session token to the waiter it was issued to.
func (s *WaiterService) Authenticate(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[token]
	return id, ok
}

func classify(err error) string {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return domain.CodeAuthFailed
	case errors.Is(err, repository.ErrTableNotFound),
		errors.Is(err, repository.ErrNoActiveOrder),
		errors.Is(err, repository.ErrOrderNotFound):
		return domain.CodeNotFound
	case errors.Is(err, repository.ErrNoOpenSession):
		return domain.CodeValidation
	default:
		return domain.CodeInternal
	}
}

// fail builds the error envelope. The raw error chain goes into the traceback
// field only in debug mode; the client routes it to diagnostics, not the user.
func (s *WaiterService) fail(action string, err error) domain.Status {
	s.lg.Error(action, err, nil)
	st := domain.Status{Error: err.Error(), Code: classify(err)}
	if s.debug && st.Code == domain.CodeInternal {
		st.Traceback = fmt.Sprintf("%+v", err)
	}
	return st
}

func validationFail(msg string) domain.Status {
	return domain.Status{Error: msg, Code: domain.CodeValidation}
}

func (s *WaiterService) referenceData(ctx context.Context) (domain.ReferenceData, error) {
	var (
		ref domain.ReferenceData
		err error
	)
	if ref.Tables, err = s.catalog.Tables(ctx); err != nil {
		return ref, err
	}
	if ref.Floors, err = s.catalog.Floors(ctx); err != nil {
		return ref, err
	}
	if ref.Products, err = s.catalog.Products(ctx); err != nil {
		return ref, err
	}
	if ref.Categories, err = s.catalog.Categories(ctx); err != nil {
		return ref, err
	}
	ref.PaymentMethods, err = s.catalog.PaymentMethods(ctx)
	return ref, err
}
