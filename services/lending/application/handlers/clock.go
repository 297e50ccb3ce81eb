package handlers

import (
	"net/http"

	"github.com/ghuser/lendingclub/pkg/httpx"
	"github.com/ghuser/lendingclub/pkg/logger"
	appsvcs "github.com/ghuser/lendingclub/services/lending/application/services"
	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

// ClockResponse reports the current lending day.
type ClockResponse struct {
	Day int `json:"day" example:"3"`
} // @name ClockResponse

// DayReportResponse describes one clock advance. failure is set when at
// least one item could not be settled; the day advanced regardless.
type DayReportResponse struct {
	ClosedDay int               `json:"closed_day" example:"3"`
	Day       int               `json:"day"        example:"4"`
	Transfers []models.Transfer `json:"transfers"`
	Failure   string            `json:"failure,omitempty" example:"cannot update: lendee: does not exist"`
} // @name DayReportResponse

// ClockHandler serves /clock.
type ClockHandler struct {
	svc *appsvcs.Services
}

// NewClockHandler returns a ClockHandler backed by the given services.
func NewClockHandler(svc *appsvcs.Services) *ClockHandler {
	return &ClockHandler{svc: svc}
}

// Get returns the current day.
//
//	@Summary	Current day
//	@Tags		clock
//	@Produce	json
//	@Success	200	{object}	ClockResponse
//	@Router		/clock [get]
func (h *ClockHandler) Get(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, ClockResponse{Day: h.svc.Lending.Now(r.Context())})
}

// Advance settles the current day and moves the clock forward by one.
//
//	@Summary		Advance day
//	@Description	Settles every active contract for the closing day, then advances the clock.
//	@Tags			clock
//	@Produce		json
//	@Success		200	{object}	DayReportResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/clock/advance [post]
func (h *ClockHandler) Advance(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Lending.AdvanceDay(logger.ContextWith(r.Context(), "clock", "manual"))
	if err != nil {
		writeError(w, h.svc, err)
		return
	}
	transfers := report.Transfers
	if transfers == nil {
		transfers = []models.Transfer{}
	}
	httpx.JSON(w, http.StatusOK, DayReportResponse{
		ClosedDay: report.ClosedDay,
		Day:       report.Day,
		Transfers: transfers,
		Failure:   report.Failure,
	})
}
