package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/camp-booking-api/api/swagger"
	"github.com/noah-isme/camp-booking-api/internal/handler"
	"github.com/noah-isme/camp-booking-api/internal/middleware"
	"github.com/noah-isme/camp-booking-api/internal/service"
	"github.com/noah-isme/camp-booking-api/pkg/config"
	"github.com/noah-isme/camp-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/camp-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/camp-booking-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth    middleware.TokenValidator
	metrics *service.MetricsService

	authH       *handler.AuthHandler
	programH    *handler.ProgramHandler
	enrollmentH *handler.EnrollmentHandler
	communityH  *handler.CommunityHandler
	userH       *handler.UserHandler
	dashboardH  *handler.DashboardHandler
	exportH     *handler.ExportHandler
	contactH    *handler.ContactHandler
	metricsH    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.WithResponseMeta())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	r.GET("/health", d.metricsH.Health)
	r.GET("/ready", d.metricsH.Ready)
	r.GET("/metrics", d.metricsH.Prometheus)

	if cfg.Uploads.PublicPrefix != "" {
		r.Static(cfg.Uploads.PublicPrefix, cfg.Uploads.Dir)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	public := api.Group("", middleware.OptionalJWT(d.auth))
	{
		public.POST("/auth/register", d.authH.Register)
		public.POST("/auth/login", d.authH.Login)
		public.POST("/auth/refresh", d.authH.Refresh)
		public.POST("/auth/forgot-password", d.authH.ForgotPassword)
		public.POST("/auth/reset-password", d.authH.ResetPassword)

		public.GET("/programs", d.programH.List)
		public.GET("/programs/featured", d.programH.Featured)
		public.GET("/programs/:id", d.programH.Get)

		public.GET("/posts", d.communityH.ListPosts)
		public.GET("/posts/:id", d.communityH.GetPost)
		public.GET("/posts/:id/comments", d.communityH.ListComments)
		public.GET("/users/:id/stats", d.communityH.AuthorStats)

		public.POST("/contact", d.contactH.Submit)
		public.GET("/exports/:token", d.exportH.Download)
	}

	secured := api.Group("", middleware.JWT(d.auth))
	{
		secured.POST("/auth/logout", d.authH.Logout)
		secured.GET("/auth/me", d.authH.Me)
		secured.PATCH("/auth/me", d.authH.UpdateProfile)
		secured.DELETE("/auth/me", d.authH.DeleteAccount)
		secured.GET("/auth/me/level", d.authH.Level)
		secured.POST("/auth/change-password", d.authH.ChangePassword)

		secured.GET("/enrollments", d.enrollmentH.ListMine)
		secured.POST("/enrollments", d.enrollmentH.Enroll)
		secured.GET("/enrollments/:id", d.enrollmentH.Get)
		secured.DELETE("/enrollments/:id", d.enrollmentH.Cancel)
		secured.POST("/wishlist", d.enrollmentH.AddToWishlist)
		secured.DELETE("/wishlist/:id", d.enrollmentH.RemoveFromWishlist)
		secured.POST("/wishlist/:id/convert", d.enrollmentH.Convert)

		secured.POST("/posts", d.communityH.CreatePost)
		secured.PUT("/posts/:id", d.communityH.UpdatePost)
		secured.DELETE("/posts/:id", d.communityH.DeletePost)
		secured.POST("/posts/:id/images", d.communityH.UploadImages)
		secured.POST("/posts/:id/comments", d.communityH.CreateComment)
		secured.POST("/posts/:id/like", d.communityH.ToggleLike)
		secured.DELETE("/comments/:id", d.communityH.DeleteComment)
	}

	admin := secured.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/dashboard", d.dashboardH.Summary)
		admin.GET("/metrics", d.dashboardH.Metrics)

		admin.POST("/programs", middleware.Audit(logr, "program.create"), d.programH.Create)
		admin.PUT("/programs/:id", middleware.Audit(logr, "program.update"), d.programH.Update)
		admin.DELETE("/programs/:id", middleware.Audit(logr, "program.delete"), d.programH.Delete)

		admin.GET("/enrollments", d.enrollmentH.List)
		admin.POST("/enrollments/:id/approve", middleware.Audit(logr, "enrollment.approve"), d.enrollmentH.Approve)
		admin.POST("/enrollments/:id/complete", middleware.Audit(logr, "enrollment.complete"), d.enrollmentH.Complete)
		admin.PATCH("/enrollments/:id/status", middleware.Audit(logr, "enrollment.status"), d.enrollmentH.UpdateStatus)
		admin.PATCH("/enrollments/:id/payment", middleware.Audit(logr, "enrollment.payment"), d.enrollmentH.UpdatePayment)
		admin.DELETE("/enrollments/:id", middleware.Audit(logr, "enrollment.delete"), d.enrollmentH.AdminDelete)
		admin.POST("/enrollments/reconcile", middleware.Audit(logr, "enrollment.reconcile"), d.enrollmentH.Reconcile)

		admin.GET("/users", d.userH.List)
		admin.GET("/users/:id", d.userH.Get)
		admin.PATCH("/users/:id", middleware.Audit(logr, "user.update"), d.userH.Update)
		admin.PUT("/users/:id/experience", middleware.Audit(logr, "user.experience"), d.userH.SetExperience)
		admin.DELETE("/users/:id", middleware.Audit(logr, "user.delete"), d.userH.Delete)

		admin.PATCH("/posts/:id/featured", middleware.Audit(logr, "post.featured"), d.communityH.SetFeatured)
		admin.POST("/exports", middleware.Audit(logr, "export.create"), d.exportH.Create)
	}

	return r
}
