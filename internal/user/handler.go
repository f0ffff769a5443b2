package user

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes user endpoints. Session issuance lives with the external
// identity provider; this service only stores profiles and verifies PINs.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a user handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

type registerRequest struct {
	Name                    string `json:"name" validate:"required,max=120"`
	Email                   string `json:"email" validate:"required,email"`
	PIN                     string `json:"pin" validate:"required,len=4,numeric"`
	NGNAccountNumber        string `json:"ngn_account_number" validate:"required,numeric"`
	NGNTrackingReference    string `json:"ngn_tracking_reference"`
	MulticurrencyCustomerID string `json:"multicurrency_customer_id"`
}

// Register creates a wallet profile.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	u, err := h.service.Register(c.UserContext(), RegisterInput{
		Name:                    req.Name,
		Email:                   req.Email,
		PIN:                     req.PIN,
		NGNAccountNumber:        req.NGNAccountNumber,
		NGNTrackingReference:    req.NGNTrackingReference,
		MulticurrencyCustomerID: req.MulticurrencyCustomerID,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(profile(u))
}

// Me returns the authenticated caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	u, err := h.service.Get(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(profile(u))
}

func profile(u User) fiber.Map {
	return fiber.Map{
		"id":                 u.ID,
		"name":               u.Name,
		"email":              u.Email,
		"ngn_account_number": u.NGNAccountNumber,
		"created_at":         u.CreatedAt,
	}
}
