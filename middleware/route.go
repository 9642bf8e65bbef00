package middleware

import (
	midsec "PShop/middleware/security"

	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	IsAuth bool
	Roles  []string // 任一角色即可；为空只校验登录
}

// Router 按 RouteOpt 给路由挂上鉴权
type Router struct {
	r    gin.IRoutes
	auth gin.HandlerFunc
}

func NewRouter(r gin.IRoutes, auth midsec.Authenticator) *Router {
	return &Router{r: r, auth: midsec.Middleware(auth, midsec.DefaultOptions())}
}

func (rt *Router) chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if !opt.IsAuth && len(opt.Roles) == 0 {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{rt.auth, midsec.RequireRoles(opt.Roles...), handler}
}

func (rt *Router) POST(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.POST(path, rt.chain(handler, opt)...)
}

func (rt *Router) GET(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.GET(path, rt.chain(handler, opt)...)
}

func (rt *Router) PATCH(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.PATCH(path, rt.chain(handler, opt)...)
}

func (rt *Router) DELETE(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.DELETE(path, rt.chain(handler, opt)...)
}
