// Package api exposes tracker commands and queries over HTTP.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/threadline/production-tracker/tracker"
)

// Server wraps a gin engine around a Tracker.
type Server struct {
	engine  *gin.Engine
	tracker *tracker.Tracker
}

// NewServer builds the HTTP surface.
func NewServer(t *tracker.Tracker) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	s := &Server{engine: r, tracker: t}
	s.registerRoutes()
	return s
}

// Engine returns the underlying gin engine.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/workflows", s.listWorkflows)

		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET("", s.listOrders)
		orders.GET(":id", s.getOrder)
		orders.GET(":id/completion", s.getCompletion)
		orders.POST(":id/products", s.addProduct)
		orders.PUT(":id/products/:productID/steps/:stepID/assignees", s.assignEmployees)
		orders.PUT(":id/products/:productID/steps/:stepID/progress", s.updateProgress)
	}
}
