package wallet

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/provider"
	"github.com/cowriepay/cowrie/internal/user"
)

// Handler exposes the money-movement endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a wallet handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

// Transfer initiates a wallet-to-wallet movement.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	amountMinor, err := currency.ToMinor(req.Amount, req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		OwnerID:                uid,
		PIN:                    req.PIN,
		Currency:               req.Currency,
		AmountMinor:            amountMinor,
		RecipientAccountNumber: req.RecipientAccountNumber,
		Narration:              req.Narration,
	})
	if err != nil {
		return movementError(err)
	}
	return c.Status(http.StatusAccepted).JSON(newMovementResponse(res))
}

// Withdraw initiates a movement to an external bank account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	amountMinor, err := currency.ToMinor(req.Amount, req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		OwnerID:       uid,
		PIN:           req.PIN,
		Currency:      req.Currency,
		AmountMinor:   amountMinor,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		Narration:     req.Narration,
	})
	if err != nil {
		return movementError(err)
	}
	return c.Status(http.StatusAccepted).JSON(newMovementResponse(res))
}

// Balance reports the balance for one currency, e.g. GET /wallet/balance/NGN.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.Balance(c.UserContext(), uid, c.Params("currency"))
	if err != nil {
		return movementError(err)
	}
	body, err := newBalanceResponse(res)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(body)
}

// Statement lists the caller's transactions for a calendar month,
// e.g. GET /wallet/statement?month=7&year=2026.
func (h *Handler) Statement(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	now := time.Now().UTC()
	month := int(now.Month())
	year := now.Year()
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return fiber.NewError(http.StatusBadRequest, "month must be 1-12")
		}
		month = m
	}
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid year")
		}
		year = y
	}

	txs, err := h.service.Statement(c.UserContext(), uid, time.Month(month), year)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionResponse(tx))
	}
	return c.JSON(fiber.Map{"transactions": out})
}

// Abandon transitions a stale pending transaction to abandoned.
func (h *Handler) Abandon(c *fiber.Ctx) error {
	tx, err := h.service.MarkAbandoned(c.UserContext(), c.Params("reference"))
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		case errors.Is(err, ledger.ErrAlreadyFinal):
			return fiber.NewError(http.StatusConflict, "transaction already final")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(newTransactionResponse(tx))
}

// movementError maps domain and provider errors onto HTTP statuses.
func movementError(err error) error {
	switch {
	case errors.Is(err, currency.ErrUnsupported):
		return fiber.NewError(http.StatusBadRequest, "unsupported currency")
	case errors.Is(err, ErrAmountBelowMinimum):
		return fiber.NewError(http.StatusBadRequest, "amount below minimum")
	case errors.Is(err, ErrAmountAboveMaximum):
		return fiber.NewError(http.StatusBadRequest, "amount above maximum")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	case errors.Is(err, user.ErrInvalidPIN):
		return fiber.NewError(http.StatusForbidden, "invalid pin")
	case errors.Is(err, ErrRecipientNotFound):
		return fiber.NewError(http.StatusNotFound, "recipient not found")
	case errors.Is(err, ErrSelfTransfer):
		return fiber.NewError(http.StatusBadRequest, "cannot transfer to yourself")
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, user.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "user not found")
	}

	if pe, ok := provider.AsError(err); ok {
		switch pe.Kind {
		case provider.KindInsufficientFunds:
			return fiber.NewError(http.StatusBadRequest, "insufficient funds at provider")
		case provider.KindInactiveAccount:
			return fiber.NewError(http.StatusBadRequest, "destination account inactive")
		case provider.KindLimitExceeded:
			return fiber.NewError(http.StatusBadRequest, "provider limit exceeded")
		case provider.KindCancelled:
			return fiber.NewError(http.StatusBadRequest, "movement cancelled by provider")
		default:
			return fiber.NewError(http.StatusBadGateway, "provider unavailable")
		}
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}
