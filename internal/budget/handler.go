package budget

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/user"
	"github.com/cowriepay/cowrie/internal/wallet"
)

// Handler exposes budget endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a budget handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

type createRequest struct {
	Name     string          `json:"name" validate:"required,max=80"`
	Currency string          `json:"currency" validate:"required,len=3"`
	Total    decimal.Decimal `json:"total" validate:"required"`
	Items    []struct {
		Name      string          `json:"name" validate:"required,max=80"`
		Allocated decimal.Decimal `json:"allocated" validate:"required"`
	} `json:"items" validate:"required,min=1,dive"`
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type spendRequest struct {
	ItemID                 string          `json:"item_id" validate:"required,uuid4"`
	Amount                 decimal.Decimal `json:"amount" validate:"required"`
	RecipientAccountNumber string          `json:"recipient_account_number" validate:"required,numeric"`
	PIN                    string          `json:"pin" validate:"required,len=4,numeric"`
	Narration              string          `json:"narration" validate:"max=140"`
}

type itemResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Allocated string `json:"allocated"`
	Spent     string `json:"spent"`
}

type budgetResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Currency  string         `json:"currency"`
	Total     string         `json:"total"`
	Spent     string         `json:"spent"`
	Items     []itemResponse `json:"items,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Create opens a new budget envelope.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	totalMinor, err := currency.ToMinor(req.Total, req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	items := make([]ItemInput, 0, len(req.Items))
	for _, in := range req.Items {
		allocated, err := currency.ToMinor(in.Allocated, req.Currency)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		items = append(items, ItemInput{Name: in.Name, AllocatedMinor: allocated})
	}

	b, created, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:    uid,
		Name:       req.Name,
		Currency:   req.Currency,
		TotalMinor: totalMinor,
		Items:      items,
	})
	if err != nil {
		return budgetError(err)
	}
	return c.Status(http.StatusCreated).JSON(newBudgetResponse(b, created))
}

// TopUp raises a budget's funded ceiling.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	budgetID := c.Params("id")
	b, err := h.service.ownedBudget(c.UserContext(), uid, budgetID)
	if err != nil {
		return budgetError(err)
	}
	amountMinor, err := currency.ToMinor(req.Amount, b.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.service.TopUp(c.UserContext(), TopUpInput{
		OwnerID:     uid,
		BudgetID:    budgetID,
		AmountMinor: amountMinor,
	})
	if err != nil {
		return budgetError(err)
	}
	return c.JSON(newBudgetResponse(updated, nil))
}

// Spend moves money from a budget item to another wallet owner.
func (h *Handler) Spend(c *fiber.Ctx) error {
	var req spendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	budgetID := c.Params("id")
	b, err := h.service.ownedBudget(c.UserContext(), uid, budgetID)
	if err != nil {
		return budgetError(err)
	}
	amountMinor, err := currency.ToMinor(req.Amount, b.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Spend(c.UserContext(), SpendInput{
		OwnerID:                uid,
		BudgetID:               budgetID,
		ItemID:                 req.ItemID,
		PIN:                    req.PIN,
		AmountMinor:            amountMinor,
		RecipientAccountNumber: req.RecipientAccountNumber,
		Narration:              req.Narration,
	})
	if err != nil {
		return budgetError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"reference":      res.Reference,
		"status":         string(res.Status),
	})
}

// Get returns one budget with its items.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	b, items, err := h.service.Get(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return budgetError(err)
	}
	return c.JSON(newBudgetResponse(b, items))
}

// List returns the caller's budgets.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	budgets, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return budgetError(err)
	}
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, newBudgetResponse(b, nil))
	}
	return c.JSON(fiber.Map{"budgets": out})
}

func newBudgetResponse(b Budget, items []Item) budgetResponse {
	out := budgetResponse{
		ID:        b.ID,
		Name:      b.Name,
		Currency:  b.Currency,
		CreatedAt: b.CreatedAt,
	}
	if total, err := currency.FromMinor(b.TotalMinor, b.Currency); err == nil {
		out.Total = total.String()
	}
	if spent, err := currency.FromMinor(b.SpentMinor, b.Currency); err == nil {
		out.Spent = spent.String()
	}
	for _, item := range items {
		ir := itemResponse{ID: item.ID, Name: item.Name}
		if allocated, err := currency.FromMinor(item.AllocatedMinor, b.Currency); err == nil {
			ir.Allocated = allocated.String()
		}
		if spent, err := currency.FromMinor(item.SpentMinor, b.Currency); err == nil {
			ir.Spent = spent.String()
		}
		out.Items = append(out.Items, ir)
	}
	return out
}

func budgetError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "budget not found")
	case errors.Is(err, ErrItemNotFound):
		return fiber.NewError(http.StatusNotFound, "budget item not found")
	case errors.Is(err, ErrInsufficientBudgetFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient budget funds")
	case errors.Is(err, ErrInsufficientItemFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient budget item funds")
	case errors.Is(err, ErrOverAllocated):
		return fiber.NewError(http.StatusBadRequest, "item allocations exceed budget total")
	case errors.Is(err, currency.ErrUnsupported):
		return fiber.NewError(http.StatusBadRequest, "unsupported currency")
	case errors.Is(err, user.ErrInvalidPIN):
		return fiber.NewError(http.StatusForbidden, "invalid pin")
	case errors.Is(err, wallet.ErrRecipientNotFound):
		return fiber.NewError(http.StatusNotFound, "recipient not found")
	case errors.Is(err, wallet.ErrSelfTransfer):
		return fiber.NewError(http.StatusBadRequest, "cannot transfer to yourself")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
