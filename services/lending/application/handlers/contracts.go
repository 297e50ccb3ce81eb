package handlers

import (
	"net/http"

	"github.com/ghuser/lendingclub/pkg/httpx"
	appsvcs "github.com/ghuser/lendingclub/services/lending/application/services"
)

// ContractHandler serves /contracts.
type ContractHandler struct {
	svc *appsvcs.Services
}

// NewContractHandler returns a ContractHandler backed by the given services.
func NewContractHandler(svc *appsvcs.Services) *ContractHandler {
	return &ContractHandler{svc: svc}
}

// Get returns one contract together with the item it was signed for.
//
//	@Summary	Get contract
//	@Tags		contracts
//	@Produce	json
//	@Param		contractID	path		string	true	"Contract ID"	format(uuid)
//	@Success	200			{object}	ContractResponse
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/contracts/{contractID} [get]
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "contractID")
	if !ok {
		return
	}
	c, err := h.svc.Lending.GetContract(r.Context(), id)
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	it, err := h.svc.Lending.GetItemForContract(r.Context(), id)
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toContractResponse(it.ID, c))
}
