package httpeval

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal"
	"bondfuzz/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes local evaluators over the evaluator protocol. Each evaluator is served
// under /evaluators/{name}/evaluate; the first one registered also answers /evaluate.
type Server struct {
	router     *gin.Engine
	evaluators map[string]ports.Evaluator
	logger     *internal.Logger
}

// NewServer builds the router. gatherer backs /metrics and may be nil.
func NewServer(logger *internal.Logger, gatherer prometheus.Gatherer, evaluators ...ports.Evaluator) *Server {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	s := &Server{
		router:     gin.New(),
		evaluators: make(map[string]ports.Evaluator, len(evaluators)),
		logger:     logger,
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	s.router.GET("/evaluators", s.handleList)

	for i, ev := range evaluators {
		s.evaluators[ev.Name()] = ev
		s.router.POST("/evaluators/"+ev.Name()+EvaluatePath, s.handleEvaluate(ev))
		if i == 0 {
			s.router.POST(EvaluatePath, s.handleEvaluate(ev))
		}
	}
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("evaluator server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleList(c *gin.Context) {
	names := make([]string, 0, len(s.evaluators))
	for name := range s.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"evaluators": names})
}

func (s *Server) handleEvaluate(ev ports.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sc scenario.Scenario
		if err := c.ShouldBindJSON(&sc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := sc.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := ev.Evaluate(c.Request.Context(), sc)
		if err != nil {
			evalErr := core.AsEvaluationError(ev.Name(), err)
			s.logger.Warn("evaluate %s: %v", sc.ID, evalErr)
			c.JSON(statusFor(evalErr), gin.H{"error": evalErr.Error(), "kind": evalErr.Kind})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// statusFor maps an evaluation failure back onto the status codes the client understands
func statusFor(err *core.EvaluationError) int {
	switch {
	case err.Kind == core.EvalTimeout:
		return http.StatusRequestTimeout
	case err.Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
