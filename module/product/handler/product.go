package handler

import (
	"PShop/middleware"
	midsec "PShop/middleware/security"
	"PShop/module/product/service"
	usermodel "PShop/module/user/model"
	"PShop/tools/apiresp"
	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProductHandler struct {
	svc *service.Service
}

func NewProductHandler(svc *service.Service) *ProductHandler { return &ProductHandler{svc: svc} }

func (h *ProductHandler) Mount(r *middleware.Router) {
	admin := middleware.RouteOpt{IsAuth: true, Roles: []string{usermodel.RoleAdmin}}
	r.POST("/products", apiresp.Wrap(h.Create), admin)
	r.GET("/products", apiresp.Wrap(h.List), middleware.RouteOpt{})
	r.GET("/products/:term", apiresp.Wrap(h.FindOne), middleware.RouteOpt{})
	r.PATCH("/products/:id", apiresp.Wrap(h.Update), admin)
	r.DELETE("/products/:id", apiresp.Wrap(h.Delete), admin)
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errs.ErrArgs.WrapMsg("id is not a uuid", "id", c.Param("id"))
	}
	return id, nil
}

func (h *ProductHandler) Create(c *gin.Context) error {
	var req service.CreateReq
	if err := apiresp.Bind(c, &req); err != nil {
		return err
	}
	u, _ := midsec.CurrentUser(c)
	p, err := h.svc.Create(c.Request.Context(), req, u)
	if err != nil {
		return err
	}
	return apiresp.Created(c, p)
}

func (h *ProductHandler) List(c *gin.Context) error {
	var pg service.Page
	if err := c.ShouldBindQuery(&pg); err != nil {
		return errs.ErrArgs.WrapMsg("invalid paging", "err", err)
	}
	out, err := h.svc.List(c.Request.Context(), pg)
	if err != nil {
		return err
	}
	return apiresp.OK(c, out)
}

func (h *ProductHandler) FindOne(c *gin.Context) error {
	p, err := h.svc.FindOne(c.Request.Context(), c.Param("term"))
	if err != nil {
		return err
	}
	return apiresp.OK(c, p)
}

func (h *ProductHandler) Update(c *gin.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req service.UpdateReq
	if err := apiresp.Bind(c, &req); err != nil {
		return err
	}
	u, _ := midsec.CurrentUser(c)
	p, err := h.svc.Update(c.Request.Context(), id, req, u)
	if err != nil {
		return err
	}
	return apiresp.OK(c, p)
}

func (h *ProductHandler) Delete(c *gin.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		return err
	}
	return apiresp.OK(c, gin.H{"id": id})
}
