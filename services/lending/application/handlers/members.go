package handlers

import (
	"net/http"
	"strconv"

	"github.com/ghuser/lendingclub/pkg/httpx"
	pkgvalidator "github.com/ghuser/lendingclub/pkg/validator"
	appsvcs "github.com/ghuser/lendingclub/services/lending/application/services"
)

const defaultLeaderboardSize = 10

// MemberRequest is the request body for creating or updating a member.
type MemberRequest struct {
	Name  string `json:"name"  validate:"required,notblank,max=120" example:"Allan"`
	Email string `json:"email" validate:"required,notblank,max=255" example:"allan@example.com"`
	Phone string `json:"phone" validate:"required,notblank,max=40"  example:"+45 1234 5678"`
} // @name MemberRequest

func (req MemberRequest) input() appsvcs.MemberInput {
	return appsvcs.MemberInput{Name: req.Name, Email: req.Email, Phone: req.Phone}
}

// MemberHandler serves /members.
type MemberHandler struct {
	svc *appsvcs.Services
}

// NewMemberHandler returns a MemberHandler backed by the given services.
func NewMemberHandler(svc *appsvcs.Services) *MemberHandler {
	return &MemberHandler{svc: svc}
}

// Create registers a new member.
//
//	@Summary		Register member
//	@Description	Registers a member with zero credits. Email and phone must not match an existing member.
//	@Tags			members
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MemberRequest	true	"Member"
//	@Success		201		{object}	MemberResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/members [post]
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := pkgvalidator.ValidateRequest[MemberRequest](w, r)
	if !ok {
		return
	}

	m, err := h.svc.Lending.RegisterMember(r.Context(), req.input())
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMemberResponse(m))
}

// List returns every member.
//
//	@Summary	List members
//	@Tags		members
//	@Produce	json
//	@Success	200	{array}	MemberResponse
//	@Router		/members [get]
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	httpx.JSONList(w, http.StatusOK, toMemberResponses(h.svc.Lending.ListMembers(r.Context())))
}

// Get returns one member.
//
//	@Summary	Get member
//	@Tags		members
//	@Produce	json
//	@Param		memberID	path		string	true	"Member ID"	format(uuid)
//	@Success	200			{object}	MemberResponse
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/members/{memberID} [get]
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	m, err := h.svc.Lending.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMemberResponse(m))
}

// Update replaces a member's contact fields.
//
//	@Summary	Update member
//	@Tags		members
//	@Accept		json
//	@Produce	json
//	@Param		memberID	path		string			true	"Member ID"	format(uuid)
//	@Param		request		body		MemberRequest	true	"Member"
//	@Success	200			{object}	MemberResponse
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Failure	409			{object}	ErrorResponse
//	@Failure	422			{object}	ErrorResponse
//	@Router		/members/{memberID} [put]
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[MemberRequest](w, r)
	if !ok {
		return
	}

	m, err := h.svc.Lending.UpdateMember(r.Context(), id, req.input())
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMemberResponse(m))
}

// Delete removes a member. Their items stay listed.
//
//	@Summary	Remove member
//	@Tags		members
//	@Param		memberID	path	string	true	"Member ID"	format(uuid)
//	@Success	204
//	@Failure	400	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/members/{memberID} [delete]
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	if err := h.svc.Lending.RemoveMember(r.Context(), id); err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.NoContent(w)
}

// ListItems returns the items a member owns.
//
//	@Summary	List member items
//	@Tags		members
//	@Produce	json
//	@Param		memberID	path	string	true	"Member ID"	format(uuid)
//	@Success	200			{array}	ItemResponse
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/members/{memberID}/items [get]
func (h *MemberHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	items, err := h.svc.Lending.ListItemsForMember(r.Context(), id)
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSONList(w, http.StatusOK, toItemResponses(items))
}

// Leaderboard returns the members with the most credits.
//
//	@Summary	Credit leaderboard
//	@Tags		members
//	@Produce	json
//	@Param		limit	query	int	false	"Number of members"	default(10)	minimum(1)
//	@Success	200		{array}	MemberResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/members/leaderboard [get]
func (h *MemberHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	n := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			httpx.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		n = v
	}
	httpx.JSONList(w, http.StatusOK, toMemberResponses(h.svc.Lending.Leaderboard(r.Context(), n)))
}
