package attribution

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sift/internal/constants"
	"sift/internal/logger"
	"sift/pkg/errors"
)

type Handler struct {
	Service *Service
	Logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		{
			runs.POST("", h.TriggerRun)
			runs.GET("", h.ListRuns)
		}

		messages := v1.Group("/messages")
		{
			messages.POST("/:id/attribute", h.AttributeMessage)
			messages.POST("/:id/unwrap", h.UnwrapMessage)
		}
	}
}

// TriggerRun godoc
// @Summary      Trigger an attribution run
// @Description  Process a batch of unattributed messages and return the run summary
// @Tags         runs
// @Accept       json
// @Produce      json
// @Param        options  body       Options  false  "Run options"
// @Success      200      {object}   Summary
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /runs [post]
func (h *Handler) TriggerRun(c *gin.Context) {
	opts := Options{UnwrapLinks: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
			return
		}
	}

	if opts.BatchSize < 0 || opts.BatchSize > constants.MaxBatchSize {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithDetail("message", "batch_size out of range")))
		return
	}

	summary, err := h.Service.Run(c.Request.Context(), opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListRuns godoc
// @Summary      List recent attribution runs
// @Description  Get recent run summaries, newest first
// @Tags         runs
// @Accept       json
// @Produce      json
// @Param        limit  query      int  false  "Maximum number of runs"
// @Success      200    {array}    RunRecord
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /runs [get]
func (h *Handler) ListRuns(c *gin.Context) {
	limit := constants.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
				errors.ErrValidation.WithDetail("message", "invalid limit")))
			return
		}
		limit = parsed
	}

	records, err := h.Service.audit.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// AttributeMessage godoc
// @Summary      Attribute a single message
// @Description  Run the full attribution pipeline for one message on demand
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        id      path       string  true   "Message ID"
// @Param        unwrap  query      bool    false  "Resolve wrapped links first"
// @Success      200     {object}   MessageResult
// @Failure      404     {object}  errors.ErrorResponse
// @Failure      409     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /messages/{id}/attribute [post]
func (h *Handler) AttributeMessage(c *gin.Context) {
	unwrap := c.DefaultQuery("unwrap", "true") == "true"

	result, err := h.Service.AttributeOne(c.Request.Context(), c.Param("id"), unwrap)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UnwrapMessage godoc
// @Summary      Unwrap a single message's links
// @Description  Resolve wrapped CTA links for one message without attributing it
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Message ID"
// @Success      200  {array}    message.CtaLink
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /messages/{id}/unwrap [post]
func (h *Handler) UnwrapMessage(c *gin.Context) {
	links, err := h.Service.UnwrapOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, links)
}
