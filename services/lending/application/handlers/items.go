package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/pkg/httpx"
	pkgvalidator "github.com/ghuser/lendingclub/pkg/validator"
	appsvcs "github.com/ghuser/lendingclub/services/lending/application/services"
)

// ItemRequest is the request body for listing or updating an item.
// An empty category is stored as Other.
type ItemRequest struct {
	OwnerID     uuid.UUID `json:"owner_id"     validate:"required"                example:"123e4567-e89b-12d3-a456-426614174000"`
	Name        string    `json:"name"         validate:"required,notblank,max=120" example:"Monopoly"`
	Description string    `json:"description"  validate:"max=2000"                example:"Classic board game"`
	Category    string    `json:"category"     validate:"omitempty,category"      example:"Game" enums:"Tool,Vehicle,Game,Toy,Sport,Other"`
	CostPerDay  float64   `json:"cost_per_day" validate:"gte=0"                   example:"30"`
} // @name ItemRequest

func (req ItemRequest) input() appsvcs.ItemInput {
	return appsvcs.ItemInput{
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		Description: req.Description,
		Category:    parseCategory(req.Category),
		CostPerDay:  req.CostPerDay,
	}
}

// LendRequest is the request body for signing a contract. StartDay defaults
// to today and TotalPrice to cost_per_day times duration_days.
type LendRequest struct {
	LendeeID     uuid.UUID `json:"lendee_id"     validate:"required"         example:"9b2f0c7e-3d41-4a5e-8f62-7c1d0e9a4b23"`
	StartDay     *int      `json:"start_day"     validate:"omitempty,gte=0"  example:"3"`
	DurationDays int       `json:"duration_days" validate:"required,gte=1"   example:"5"`
	TotalPrice   *float64  `json:"total_price"   validate:"omitempty,gte=0"  example:"150"`
} // @name LendRequest

// ItemHandler serves /items.
type ItemHandler struct {
	svc *appsvcs.Services
}

// NewItemHandler returns an ItemHandler backed by the given services.
func NewItemHandler(svc *appsvcs.Services) *ItemHandler {
	return &ItemHandler{svc: svc}
}

// Create lists a new item and credits the owner the listing bonus.
//
//	@Summary		List item
//	@Description	Lists an item for lending. The owner receives a one-time bonus of 100 credits.
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ItemRequest	true	"Item"
//	@Success		201		{object}	ItemResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/items [post]
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := pkgvalidator.ValidateRequest[ItemRequest](w, r)
	if !ok {
		return
	}

	it, err := h.svc.Lending.ListItem(r.Context(), req.input())
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(it))
}

// List returns every item.
//
//	@Summary	List items
//	@Tags		items
//	@Produce	json
//	@Success	200	{array}	ItemResponse
//	@Router		/items [get]
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	httpx.JSONList(w, http.StatusOK, toItemResponses(h.svc.Lending.ListItems(r.Context())))
}

// Get returns one item with its contract history.
//
//	@Summary	Get item
//	@Tags		items
//	@Produce	json
//	@Param		itemID	path		string	true	"Item ID"	format(uuid)
//	@Success	200		{object}	ItemResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	404		{object}	ErrorResponse
//	@Router		/items/{itemID} [get]
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	it, err := h.svc.Lending.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(it))
}

// Update replaces an item's listing fields.
//
//	@Summary		Update item
//	@Description	Replaces the listing fields. A new owner_id moves the item to that member.
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			itemID	path		string		true	"Item ID"	format(uuid)
//	@Param			request	body		ItemRequest	true	"Item"
//	@Success		200		{object}	ItemResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/items/{itemID} [put]
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[ItemRequest](w, r)
	if !ok {
		return
	}

	it, err := h.svc.Lending.UpdateItem(r.Context(), id, req.input())
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(it))
}

// Delete withdraws an item.
//
//	@Summary	Remove item
//	@Tags		items
//	@Param		itemID	path	string	true	"Item ID"	format(uuid)
//	@Success	204
//	@Failure	400	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/items/{itemID} [delete]
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.svc.Lending.RemoveItem(r.Context(), id); err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.NoContent(w)
}

// Lend signs a contract for an item.
//
//	@Summary		Lend item
//	@Description	Signs a contract. The item must have no unexpired contract and the window must not overlap its history.
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			itemID	path		string		true	"Item ID"	format(uuid)
//	@Param			request	body		LendRequest	true	"Contract terms"
//	@Success		201		{object}	ContractResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/items/{itemID}/contracts [post]
func (h *ItemHandler) Lend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[LendRequest](w, r)
	if !ok {
		return
	}

	c, err := h.svc.Lending.LendItem(r.Context(), id, appsvcs.LendInput{
		LendeeID:     req.LendeeID,
		StartDay:     req.StartDay,
		DurationDays: req.DurationDays,
		TotalPrice:   req.TotalPrice,
	})
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toContractResponse(id, c))
}
