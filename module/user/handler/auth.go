package handler

import (
	"PShop/middleware"
	midsec "PShop/middleware/security"
	"PShop/module/user/service"
	"PShop/tools/apiresp"
	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc *service.Service
}

func NewAuthHandler(svc *service.Service) *AuthHandler { return &AuthHandler{svc: svc} }

// Mount registers /auth/* under r.
func (h *AuthHandler) Mount(r *middleware.Router) {
	r.POST("/auth/register", apiresp.Wrap(h.Register), middleware.RouteOpt{})
	r.POST("/auth/login", apiresp.Wrap(h.Login), middleware.RouteOpt{})
	r.GET("/auth/check-status", apiresp.Wrap(h.CheckStatus), middleware.RouteOpt{IsAuth: true})
}

func (h *AuthHandler) Register(c *gin.Context) error {
	var req service.RegisterReq
	if err := apiresp.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		return err
	}
	return apiresp.Created(c, res)
}

func (h *AuthHandler) Login(c *gin.Context) error {
	var req service.LoginReq
	if err := apiresp.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		return err
	}
	return apiresp.OK(c, res)
}

func (h *AuthHandler) CheckStatus(c *gin.Context) error {
	u, ok := midsec.CurrentUser(c)
	if !ok {
		return errs.ErrUnauthorized.WrapMsg("user not in context")
	}
	res, err := h.svc.CheckStatus(u)
	if err != nil {
		return err
	}
	return apiresp.OK(c, res)
}
