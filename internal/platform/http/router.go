package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dogspots-bxl/data-importer/internal/business/pipeline"
	"github.com/dogspots-bxl/data-importer/internal/repository"
	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// Router wires the status and trigger endpoints.
type Router struct {
	scheduler *pipeline.Scheduler
	service   *pipeline.Service
	runs      *repository.RunRepository
}

func NewRouter(scheduler *pipeline.Scheduler, service *pipeline.Service, runs *repository.RunRepository) *gin.Engine {
	r := &Router{scheduler: scheduler, service: service, runs: runs}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/pipelines", r.listPipelines)
		api.GET("/pipelines/:id", r.getPipeline)
		api.POST("/pipelines/:id/run", r.runPipeline)
		api.GET("/scheduler/status", r.schedulerStatus)
		api.GET("/versions", r.listVersions)
		api.GET("/runs", r.listRuns)
	}

	return router
}

func (r *Router) listPipelines(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		c.JSON(http.StatusOK, r.service.PipelinesByStatus(model.PipelineStatus(status)))
		return
	}
	c.JSON(http.StatusOK, r.service.AllPipelines())
}

func (r *Router) getPipeline(c *gin.Context) {
	p, ok := r.service.Pipeline(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (r *Router) runPipeline(c *gin.Context) {
	result, err := r.scheduler.ExecuteNow(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, pipeline.ErrPipelineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrPipelineRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, result)
	}
}

func (r *Router) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.scheduler.Status())
}

func (r *Router) listVersions(c *gin.Context) {
	dataType := model.DataType(c.Query("type"))
	source := model.Provider(c.Query("source"))
	if dataType == "" || source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and source query params are required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	c.JSON(http.StatusOK, r.service.Versions().VersionHistory(dataType, source, limit))
}

func (r *Router) listRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := r.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}
