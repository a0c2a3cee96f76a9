package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appcompany "github.com/erp/bff/internal/application/company"
	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
)

// CompanyService reads the companies a session may work in
type CompanyService interface {
	ListAllowed(ctx context.Context, session *identity.Session) ([]appcompany.Summary, error)
	Profile(ctx context.Context, session *identity.Session, company string) (*fiscal.CompanyProfile, error)
}

// CompanyHandler serves the company endpoints
type CompanyHandler struct {
	BaseHandler
	companies CompanyService
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(companies CompanyService) *CompanyHandler {
	return &CompanyHandler{companies: companies}
}

// List godoc
// @Summary      List the companies of the session
// @Tags         companies
// @Produce      json
// @Success      200 {object} dto.Response{data=[]appcompany.Summary}
// @Security     BearerAuth
// @Router       /companies [get]
func (h *CompanyHandler) List(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	items, err := h.companies.ListAllowed(c.Request.Context(), session)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, int64(len(items)), 1, len(items))
}

// CurrentProfile returns the fiscal profile of the active company
func (h *CompanyHandler) CurrentProfile(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	profile, err := h.companies.Profile(c.Request.Context(), session, session.Company)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, profile)
}
