package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appresource "github.com/erp/bff/internal/application/resource"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/interfaces/http/dto"
)

// ResourceService is the generic company-scoped CRUD over registered doctypes
type ResourceService interface {
	List(ctx context.Context, session *identity.Session, resource string, params appresource.ListParams) (*appresource.ListResult, error)
	Get(ctx context.Context, session *identity.Session, resource, name string) (erpnext.Document, error)
	Create(ctx context.Context, session *identity.Session, resource string, payload map[string]any) (erpnext.Document, error)
	Update(ctx context.Context, session *identity.Session, resource, name string, payload map[string]any) (erpnext.Document, error)
	Delete(ctx context.Context, session *identity.Session, resource, name string) error
}

// ResourceHandler serves /resources/:resource
type ResourceHandler struct {
	BaseHandler
	resources ResourceService
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(resources ResourceService) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

// List godoc
// @Summary      List documents of a resource in the active company
// @Tags         resources
// @Produce      json
// @Param        resource  path  string true  "Resource name, e.g. customers"
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20) maximum(100)
// @Param        search    query string false "Search term"
// @Param        order_by  query string false "Field and direction, e.g. modified desc"
// @Param        filter    query object false "Equality filters as filter[field]=value"
// @Success      200 {object} dto.Response{data=[]erpnext.Document,meta=dto.Meta}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /resources/{resource} [get]
func (h *ResourceHandler) List(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req dto.ListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	result, err := h.resources.List(c.Request.Context(), session, c.Param("resource"), appresource.ListParams{
		Page:     req.Page,
		PageSize: req.PageSize,
		Search:   req.Search,
		OrderBy:  req.OrderBy,
		Filters:  c.QueryMap("filter"),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, int64(result.Total), result.Page, result.PageSize)
}

// Get returns one document
func (h *ResourceHandler) Get(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	doc, err := h.resources.Get(c.Request.Context(), session, c.Param("resource"), c.Param("name"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Create inserts a document in the active company
func (h *ResourceHandler) Create(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var payload map[string]any
	if !h.BindJSON(c, &payload) {
		return
	}
	doc, err := h.resources.Create(c.Request.Context(), session, c.Param("resource"), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// Update changes the given fields of a document
func (h *ResourceHandler) Update(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var payload map[string]any
	if !h.BindJSON(c, &payload) {
		return
	}
	doc, err := h.resources.Update(c.Request.Context(), session, c.Param("resource"), c.Param("name"), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Delete removes a document
func (h *ResourceHandler) Delete(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	if err := h.resources.Delete(c.Request.Context(), session, c.Param("resource"), c.Param("name")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
