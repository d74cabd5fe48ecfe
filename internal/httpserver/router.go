package httpserver

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rfqgateway/internal/handler"
)

type Options struct {
	AllowedOrigins  []string
	AdminBearer     string
	AdminBearerHash string
	CallbackURL     string
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	opts Options,
	authenticator Authenticator,
	healthHandler *handler.HealthHandler,
	adminHandler *handler.AdminHandler,
	rfqHandler *handler.RFQHandler,
	companyHandler *handler.CompanyHandler,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(
		TraceMiddleware(),
		CORSMiddleware(opts.AllowedOrigins),
		RequestLogMiddleware(logger),
		RecoveryMiddleware(logger),
	)

	// Health endpoints (放在最前面)
	r.GET("/health", healthHandler.Health)
	r.GET("/api/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Health)
	r.HEAD("/healthz", healthHandler.Health)
	r.GET("/readyz", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.GET("/auth/redirect", handler.AuthRedirect(opts.CallbackURL))

	// Admin (static bearer)
	admin := r.Group("/admin")
	admin.Use(AdminMiddleware(opts.AdminBearer, opts.AdminBearerHash))
	{
		admin.GET("/whoami", adminHandler.Whoami)
		admin.POST("/users.invite", adminHandler.InviteUser)
		admin.GET("/debug/supabase-host", adminHandler.SupabaseHost)
	}

	// Protected (end-user JWT)
	user := r.Group("/")
	user.Use(AuthMiddleware(authenticator))
	{
		user.GET("/me", handler.Me)

		user.GET("/buyer/rfqs", rfqHandler.BuyerRfqs)
		user.GET("/buyer/rfq/:id", rfqHandler.BuyerRfq)
		user.GET("/seller/rfqs", rfqHandler.SellerRfqs)
		user.GET("/seller/rfq/hydrate", rfqHandler.HydrateSeller)

		user.POST("/company/create", companyHandler.Create)
		user.POST("/company/invite", companyHandler.Invite)
		user.POST("/company/accept", companyHandler.Accept)
		user.GET("/company/invite/:token", companyHandler.GetInvite)
	}

	return &Router{Engine: r}
}
