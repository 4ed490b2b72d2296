// Package router provides grader service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	grpcHandler "github.com/kart-io/rubric-grader/internal/grader/grpc"
	"github.com/kart-io/rubric-grader/internal/grader/handler"
	"github.com/kart-io/rubric-grader/internal/grader/metrics"
	"github.com/kart-io/rubric-grader/pkg/infra/middleware"
	grpcserver "github.com/kart-io/rubric-grader/pkg/infra/server/transport/grpc"
	"github.com/kart-io/rubric-grader/pkg/utils/errors"
	"github.com/kart-io/rubric-grader/pkg/utils/response"
)

// NewEngine builds the gin engine with middleware and every HTTP route.
func NewEngine(serviceName string, graderHandler *handler.GraderHandler, m *metrics.GraderMetrics) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger("/healthz", "/metrics"),
		middleware.Tracing(serviceName),
		middleware.CORS(),
	)
	if m != nil {
		engine.Use(middleware.Metrics(m))
		engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	engine.GET("/", graderHandler.Root)
	engine.GET("/healthz", graderHandler.Healthz)

	engine.POST("/upload-rubric", graderHandler.UploadRubric)
	engine.POST("/upload-text", graderHandler.UploadText)
	engine.POST("/grade-answer", graderHandler.GradeAnswer)
	engine.POST("/retrieve", graderHandler.Retrieve)

	engine.DELETE("/namespaces/:user_id", graderHandler.DeleteNamespace)
	engine.POST("/delete-vectors", graderHandler.DeleteVectors)

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, errors.ErrNotFound)
	})

	logger.Info("HTTP routes registered")
	return engine
}

// RegisterGRPC registers the grader gRPC service.
func RegisterGRPC(s *grpcserver.Server, h *grpcHandler.Handler) {
	s.RegisterService(&grpcHandler.ServiceDesc, h)
	logger.Info("gRPC routes registered")
}
