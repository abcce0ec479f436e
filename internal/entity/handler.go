package entity

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sift/internal/logger"
	"sift/pkg/errors"
)

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
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
		entities := v1.Group("/entities")
		{
			entities.GET("", h.ListEntities)
			entities.POST("", h.CreateEntity)
			entities.GET("/:id", h.GetEntity)
			entities.PUT("/:id", h.UpdateEntity)
			entities.DELETE("/:id", h.DeleteEntity)
		}
	}
}

// ListEntities godoc
// @Summary      List all entities
// @Description  Get all registered entities
// @Tags         entities
// @Accept       json
// @Produce      json
// @Success      200  {array}    Entity
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /entities [get]
func (h *Handler) ListEntities(c *gin.Context) {
	entities, err := h.Service.ListEntities(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entities)
}

// CreateEntity godoc
// @Summary      Register a new entity
// @Description  Register a politician, PAC, organization, or data broker
// @Tags         entities
// @Accept       json
// @Produce      json
// @Param        entity  body       CreateEntityRequest  true  "Entity data"
// @Success      201     {object}   Entity
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /entities [post]
func (h *Handler) CreateEntity(c *gin.Context) {
	var req CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	e, err := h.Service.CreateEntity(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, e)
}

// GetEntity godoc
// @Summary      Get an entity by ID
// @Description  Get a specific entity by its ID
// @Tags         entities
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Entity ID"
// @Success      200  {object}   Entity
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /entities/{id} [get]
func (h *Handler) GetEntity(c *gin.Context) {
	e, err := h.Service.GetEntity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, e)
}

// UpdateEntity godoc
// @Summary      Update an entity
// @Description  Update an existing entity by ID
// @Tags         entities
// @Accept       json
// @Produce      json
// @Param        id      path      string               true  "Entity ID"
// @Param        entity  body       UpdateEntityRequest  true  "Updated entity data"
// @Success      200     {object}   Entity
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /entities/{id} [put]
func (h *Handler) UpdateEntity(c *gin.Context) {
	var req UpdateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	e, err := h.Service.UpdateEntity(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, e)
}

// DeleteEntity godoc
// @Summary      Delete an entity
// @Description  Delete an entity by ID
// @Tags         entities
// @Accept       json
// @Produce      json
// @Param        id   path  string  true  "Entity ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /entities/{id} [delete]
func (h *Handler) DeleteEntity(c *gin.Context) {
	if err := h.Service.DeleteEntity(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
