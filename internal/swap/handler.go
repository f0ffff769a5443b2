package swap

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/wallet"
)

// Handler exposes swap endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a swap handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

type quoteRequest struct {
	SourceCurrency string          `json:"source_currency" validate:"required,len=3"`
	TargetCurrency string          `json:"target_currency" validate:"required,len=3"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
}

type executeRequest struct {
	Reference string `json:"reference" validate:"required"`
}

type quoteResponse struct {
	Reference      string    `json:"reference"`
	SourceCurrency string    `json:"source_currency"`
	SourceAmount   string    `json:"source_amount"`
	TargetCurrency string    `json:"target_currency"`
	TargetAmount   string    `json:"target_amount"`
	Rate           string    `json:"rate"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Quote prices a conversion and returns a time-boxed offer.
func (h *Handler) Quote(c *fiber.Ctx) error {
	var req quoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	amountMinor, err := currency.ToMinor(req.Amount, req.SourceCurrency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	q, err := h.service.Quote(c.UserContext(), QuoteInput{
		OwnerID:        uid,
		SourceCurrency: req.SourceCurrency,
		TargetCurrency: req.TargetCurrency,
		AmountMinor:    amountMinor,
	})
	if err != nil {
		return swapError(err)
	}
	return c.Status(http.StatusCreated).JSON(newQuoteResponse(q))
}

// Execute consumes a quote and settles the conversion.
func (h *Handler) Execute(c *fiber.Ctx) error {
	var req executeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	q, err := h.service.Execute(c.UserContext(), uid, req.Reference)
	if err != nil {
		return swapError(err)
	}
	return c.JSON(newQuoteResponse(q))
}

func newQuoteResponse(q Quote) quoteResponse {
	out := quoteResponse{
		Reference:      q.Reference,
		SourceCurrency: q.SourceCurrency,
		TargetCurrency: q.TargetCurrency,
		Rate:           q.Rate.String(),
		ExpiresAt:      q.ExpiresAt,
	}
	if amount, err := currency.FromMinor(q.SourceAmountMinor, q.SourceCurrency); err == nil {
		out.SourceAmount = amount.String()
	}
	if amount, err := currency.FromMinor(q.TargetAmountMinor, q.TargetCurrency); err == nil {
		out.TargetAmount = amount.String()
	}
	return out
}

func swapError(err error) error {
	switch {
	case errors.Is(err, currency.ErrUnsupported):
		return fiber.NewError(http.StatusBadRequest, "unsupported currency")
	case errors.Is(err, ErrSameCurrency):
		return fiber.NewError(http.StatusBadRequest, "source and target currency are the same")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ErrQuoteNotFound):
		return fiber.NewError(http.StatusNotFound, "quote not found")
	case errors.Is(err, ErrQuoteAlreadyConsumed):
		return fiber.NewError(http.StatusConflict, "quote already executed")
	case errors.Is(err, ErrQuoteExpired):
		return fiber.NewError(http.StatusGone, "quote expired")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
