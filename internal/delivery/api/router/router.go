// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"forum/internal/delivery/api/middleware"
	"forum/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	AccountHandler *handler.AccountHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	accountHandler *handler.AccountHandler
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		accountHandler: params.AccountHandler,
		authMiddleware: params.AuthMiddleware,
		rateLimiter:    params.RateLimiter,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login/google", r.authHandler.GoogleLogin)
		authGroup.POST("/login/github", r.authHandler.GitHubLogin)
		authGroup.POST("/reissue", r.authHandler.Reissue, r.rateLimiter.Limit)
		authGroup.POST("/logout", r.authHandler.Logout, r.authMiddleware.OptionalAuthenticate)
	}

	membersGroup := api.Group("/members")
	membersGroup.Use(r.authMiddleware.Authenticate)
	{
		membersGroup.GET("/me", r.accountHandler.Me)
	}
}
