package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPIN indicates the supplied transaction PIN does not match.
var ErrInvalidPIN = errors.New("invalid transaction PIN")

// Service manages wallet owners and PIN verification.
type Service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput captures data required to register a wallet owner.
type RegisterInput struct {
	Name                    string
	Email                   string
	PIN                     string
	NGNAccountNumber        string
	NGNTrackingReference    string
	MulticurrencyCustomerID string
}

// Register creates a user and stores a hashed transaction PIN.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	if len(input.PIN) < 4 {
		return User{}, errors.New("PIN must be at least 4 digits")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.PIN), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:                      uuid.NewString(),
		Name:                    input.Name,
		Email:                   input.Email,
		PINHash:                 hash,
		NGNAccountNumber:        input.NGNAccountNumber,
		NGNTrackingReference:    input.NGNTrackingReference,
		MulticurrencyCustomerID: input.MulticurrencyCustomerID,
		CreatedAt:               time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// ByNGNAccountNumber resolves the owner of a virtual account number.
func (s *Service) ByNGNAccountNumber(ctx context.Context, accountNumber string) (User, error) {
	return s.repo.FindByNGNAccountNumber(ctx, accountNumber)
}

// VerifyPIN checks the transaction PIN against the stored hash. bcrypt's
// comparison is constant time over the hash.
func (s *Service) VerifyPIN(ctx context.Context, userID, pin string) error {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(u.PINHash, []byte(pin)); err != nil {
		return ErrInvalidPIN
	}
	return nil
}
