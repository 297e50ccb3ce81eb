// Package handlers exposes the lending service over HTTP.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/pkg/errhttp"
	"github.com/ghuser/lendingclub/pkg/httpx"
	pkgvalidator "github.com/ghuser/lendingclub/pkg/validator"
	appsvcs "github.com/ghuser/lendingclub/services/lending/application/services"
	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

func init() {
	_ = pkgvalidator.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := models.ParseCategory(fl.Field().String())
		return err == nil
	}, "Must be one of: "+categoryNames())
}

func categoryNames() string {
	names := make([]string, 0, len(models.Categories()))
	for _, c := range models.Categories() {
		names = append(names, c.String())
	}
	return strings.Join(names, ", ")
}

func writeError(w http.ResponseWriter, svc *appsvcs.Services, err error) {
	errhttp.WriteSafeError(w, err, svc.IsProduction)
}

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Error string `json:"error" example:"does not exist"`
} // @name ErrorResponse

// MemberResponse is the public view of a member.
type MemberResponse struct {
	ID           uuid.UUID   `json:"id"             example:"123e4567-e89b-12d3-a456-426614174000"`
	Name         string      `json:"name"           example:"Allan"`
	Email        string      `json:"email"          example:"allan@example.com"`
	Phone        string      `json:"phone"          example:"+45 1234 5678"`
	Credits      float64     `json:"credits"        example:"800"`
	OwnedItemIDs []uuid.UUID `json:"owned_item_ids"`
	CreatedAt    time.Time   `json:"created_at"     example:"2024-01-15T10:30:00Z"`
} // @name MemberResponse

// ContractResponse is the public view of a contract.
type ContractResponse struct {
	ID           uuid.UUID `json:"id"            example:"6f1c2a4e-1b7d-4c38-9a0e-2d5b8f3e7c10"`
	ItemID       uuid.UUID `json:"item_id"       example:"550e8400-e29b-41d4-a716-446655440000"`
	OwnerID      uuid.UUID `json:"owner_id"      example:"123e4567-e89b-12d3-a456-426614174000"`
	LendeeID     uuid.UUID `json:"lendee_id"     example:"9b2f0c7e-3d41-4a5e-8f62-7c1d0e9a4b23"`
	StartDay     int       `json:"start_day"     example:"3"`
	EndDay       int       `json:"end_day"       example:"8"`
	DurationDays int       `json:"duration_days" example:"5"`
	TotalPrice   float64   `json:"total_price"   example:"150"`
} // @name ContractResponse

// ItemResponse is the public view of an item with its contract history.
type ItemResponse struct {
	ID             uuid.UUID          `json:"id"           example:"550e8400-e29b-41d4-a716-446655440000"`
	OwnerID        uuid.UUID          `json:"owner_id"     example:"123e4567-e89b-12d3-a456-426614174000"`
	Name           string             `json:"name"         example:"Monopoly"`
	Description    string             `json:"description"  example:"Classic board game"`
	Category       string             `json:"category"     example:"Game"`
	CostPerDay     float64            `json:"cost_per_day" example:"30"`
	CreatedAt      time.Time          `json:"created_at"   example:"2024-01-15T10:30:00Z"`
	ActiveContract *ContractResponse  `json:"active_contract,omitempty"`
	History        []ContractResponse `json:"history"`
} // @name ItemResponse

func toMemberResponse(m models.Member) MemberResponse {
	return MemberResponse{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		Credits:      m.Credits(),
		OwnedItemIDs: m.OwnedItemIDs(),
		CreatedAt:    m.CreatedAt,
	}
}

func toMemberResponses(ms []models.Member) []MemberResponse {
	out := make([]MemberResponse, len(ms))
	for i, m := range ms {
		out[i] = toMemberResponse(m)
	}
	return out
}

func toContractResponse(itemID uuid.UUID, c models.Contract) ContractResponse {
	return ContractResponse{
		ID:           c.ID,
		ItemID:       itemID,
		OwnerID:      c.OwnerID,
		LendeeID:     c.LendeeID,
		StartDay:     c.StartDay,
		EndDay:       c.EndDay(),
		DurationDays: c.DurationDays,
		TotalPrice:   c.TotalPrice,
	}
}

func toItemResponse(it models.Item) ItemResponse {
	history := it.History()
	resp := ItemResponse{
		ID:          it.ID,
		OwnerID:     it.OwnerID,
		Name:        it.Name.String(),
		Description: it.Description,
		Category:    it.Category.String(),
		CostPerDay:  it.CostPerDay,
		CreatedAt:   it.CreatedAt,
		History:     make([]ContractResponse, len(history)),
	}
	for i, c := range history {
		resp.History[i] = toContractResponse(it.ID, c)
	}
	if c, ok := it.ActiveContract(); ok {
		active := toContractResponse(it.ID, c)
		resp.ActiveContract = &active
	}
	return resp
}

func toItemResponses(items []models.Item) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = toItemResponse(it)
	}
	return out
}

// pathID parses the named URL parameter as a UUID. On failure it writes a
// 400 response and returns false.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// parseCategory normalizes a validated category; empty stays empty.
func parseCategory(s string) models.Category {
	if s == "" {
		return ""
	}
	c, _ := models.ParseCategory(s)
	return c
}
