// Package memory is an in-process implementation of the repository interfaces. Every
// unit of work is serialized, and a failed unit restores the state it started from.
package memory

import (
	"context"
	"fmt"
	"sync"

	"cleanmarket/internal/models"
	"cleanmarket/internal/repositories"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
)

type unitKey struct{}

type state struct {
	bookings      map[uuid.UUID]models.Booking
	events        map[uuid.UUID]models.BookingEvent
	profiles      map[uuid.UUID]models.CleanerProfile
	wallets       map[uuid.UUID]models.Wallet
	transactions  map[uuid.UUID]models.WalletTransaction
	commissions   map[uuid.UUID]models.Commission
	thresholds    map[uuid.UUID]models.DebtThreshold
	flags         map[uuid.UUID]models.FraudFlag
	eventSequence []uuid.UUID
	txSequence    []uuid.UUID
	flagSequence  []uuid.UUID
}

func newState() state {
	return state{
		bookings:     map[uuid.UUID]models.Booking{},
		events:       map[uuid.UUID]models.BookingEvent{},
		profiles:     map[uuid.UUID]models.CleanerProfile{},
		wallets:      map[uuid.UUID]models.Wallet{},
		transactions: map[uuid.UUID]models.WalletTransaction{},
		commissions:  map[uuid.UUID]models.Commission{},
		thresholds:   map[uuid.UUID]models.DebtThreshold{},
		flags:        map[uuid.UUID]models.FraudFlag{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.commissions {
		c.commissions[k] = v
	}
	for k, v := range s.thresholds {
		c.thresholds[k] = v
	}
	for k, v := range s.flags {
		c.flags[k] = v
	}
	c.eventSequence = append([]uuid.UUID(nil), s.eventSequence...)
	c.txSequence = append([]uuid.UUID(nil), s.txSequence...)
	c.flagSequence = append([]uuid.UUID(nil), s.flagSequence...)
	return c
}

// Store holds all tables. The zero value is not usable; call New.
type Store struct {
	mu   sync.Mutex
	data state
	log  logger.Logger
}

func New() *Store {
	return &Store{
		data: newState(),
		log:  logger.New("memoryStore"),
	}
}

// Repository exposes the store through the same aggregate the gorm layer returns.
func (s *Store) Repository() repositories.Repository {
	return repositories.Repository{
		Booking:       &bookingRepository{store: s},
		Cleaner:       &cleanerRepository{store: s},
		Wallet:        &walletRepository{store: s},
		Commission:    &commissionRepository{store: s},
		FraudFlag:     &fraudFlagRepository{store: s},
		DebtThreshold: &debtThresholdRepository{store: s},
	}
}

func (s *Store) inUnit(ctx context.Context) bool {
	owner, ok := ctx.Value(unitKey{}).(*Store)
	return ok && owner == s
}

// Execute implements repositories.Transactor.
func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inUnit(ctx) {
		return fn(ctx)
	}

	log := s.log.Function("Execute")

	s.mu.Lock()
	snapshot := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.data = snapshot
			err = log.Error("panic during transaction", "panic", fmt.Sprintf("%v", r))
		} else if err != nil {
			s.data = snapshot
		}
		s.mu.Unlock()
	}()

	return fn(context.WithValue(ctx, unitKey{}, s))
}

// run executes a single repository call, joining the caller's unit when there is one.
func (s *Store) run(ctx context.Context, fn func(data *state) error) error {
	if s.inUnit(ctx) {
		return fn(&s.data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}
