package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/redbadger/journey-dynamics/internal/domain"
	"github.com/redbadger/journey-dynamics/internal/eventstore"
	"github.com/redbadger/journey-dynamics/internal/facade"
	apperrors "github.com/redbadger/journey-dynamics/internal/pkg/errors"
)

// Handlers implements the three §6 HTTP routes over a Facade.
type Handlers struct {
	facade *facade.Facade
}

// NewHandlers constructs Handlers.
func NewHandlers(f *facade.Facade) *Handlers {
	return &Handlers{facade: f}
}

// Health responds to the unauthenticated liveness probe.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startRequest struct {
	ID *uuid.UUID `json:"id"`
}

// StartJourney handles POST /journeys.
func (h *Handlers) StartJourney(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err.Error())
			return
		}
	}

	id := uuid.New()
	if req.ID != nil {
		id = *req.ID
	}

	if _, err := h.facade.Execute(c.Request.Context(), id, domain.StartCommand{ID: id}); err != nil {
		abortCommandError(c, err)
		return
	}

	c.Header("Location", "/journeys/"+id.String())
	c.Status(http.StatusCreated)
}

// commandRequest is the tagged-union wire shape for POST /journeys/{id}.
type commandRequest struct {
	Type  string  `json:"type" binding:"required"`
	Step  string  `json:"step"`
	Data  any     `json:"data"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// DispatchCommand handles POST /journeys/{id}.
func (h *Handlers) DispatchCommand(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortBadRequest(c, "invalid journey id")
		return
	}

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err.Error())
		return
	}

	cmd, err := toCommand(req)
	if err != nil {
		abortBadRequest(c, err.Error())
		return
	}

	if _, err := h.facade.Execute(c.Request.Context(), id, cmd); err != nil {
		abortCommandError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func toCommand(req commandRequest) (domain.Command, error) {
	switch req.Type {
	case "Capture":
		return domain.CaptureCommand{Step: req.Step, Data: req.Data}, nil
	case "CapturePerson":
		return domain.CapturePersonCommand{Name: req.Name, Email: req.Email, Phone: req.Phone}, nil
	case "Complete":
		return domain.CompleteCommand{}, nil
	default:
		return nil, errors.New("unknown command type: " + req.Type)
	}
}

// GetJourney handles GET /journeys/{id}.
func (h *Handlers) GetJourney(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortBadRequest(c, "invalid journey id")
		return
	}

	view, err := h.facade.LoadView(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, facade.ErrViewNotFound) {
			_ = c.Error(apperrors.ErrJourneyNotFoundf())
			c.Abort()
			return
		}
		_ = c.Error(apperrors.Wrap(err, "INTERNAL_ERROR", "failed to load journey", http.StatusInternalServerError))
		c.Abort()
		return
	}

	var person gin.H
	if view.Person != nil {
		person = gin.H{
			"name":  view.Person.Name,
			"email": view.Person.Email,
			"phone": view.Person.Phone,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                view.ID,
		"state":             view.State,
		"current_step":      view.CurrentStep,
		"accumulated_data":  view.AccumulatedData,
		"suggested_actions": view.SuggestedActions,
		"primary_next_step": view.PrimaryNextStep,
		"person":            person,
	})
}

// abortBadRequest records a 400 on c.Errors and lets ErrorHandler write the
// response, rather than writing JSON directly from the handler.
func abortBadRequest(c *gin.Context, message string) {
	_ = c.Error(apperrors.BadRequest("BAD_REQUEST", message))
	c.Abort()
}

// abortCommandError maps domain/eventstore failures to the status codes §6
// and §7 specify — lifecycle and validation failures are 400s, an unknown
// journey is 404, and a concurrency conflict is a 409 the client should
// retry — then records the resulting AppError on c.Errors so ErrorHandler
// writes the response.
func abortCommandError(c *gin.Context, err error) {
	var invalidData *domain.InvalidDataError
	var decisionErr *domain.DecisionEngineError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		_ = c.Error(apperrors.ErrJourneyNotFoundf())
	case errors.Is(err, domain.ErrAlreadyStarted):
		_ = c.Error(apperrors.BadRequest(apperrors.CodeJourneyAlreadyStarted, err.Error()))
	case errors.Is(err, domain.ErrAlreadyCompleted):
		_ = c.Error(apperrors.BadRequest(apperrors.CodeJourneyAlreadyDone, err.Error()))
	case errors.As(err, &invalidData):
		_ = c.Error(apperrors.ErrInvalidDataf(err.Error()))
	case errors.As(err, &decisionErr):
		_ = c.Error(apperrors.New(apperrors.CodeDecisionEngineFailed, err.Error(), http.StatusBadGateway))
	case errors.Is(err, eventstore.ErrConcurrentAppend):
		_ = c.Error(apperrors.ErrConcurrentModificationf())
	default:
		_ = c.Error(apperrors.Wrap(err, "INTERNAL_ERROR", "internal error", http.StatusInternalServerError))
	}
	c.Abort()
}
