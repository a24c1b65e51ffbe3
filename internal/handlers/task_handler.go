package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/logging"
	"taskboard/internal/models"
	"taskboard/internal/pdf"
	"taskboard/internal/repositories"
	"taskboard/internal/services"
)

type TaskHandler struct {
	service services.TaskService
	pdfGen  pdf.Generator
	log     *zap.Logger
}

func NewTaskHandler(service services.TaskService, pdfGen pdf.Generator, log *zap.Logger) *TaskHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskHandler{service: service, pdfGen: pdfGen, log: log}
}

// @Summary      Create a task
// @Description  Creates a pending task. due_date is RFC3339 and optional.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        task  body      models.CreateTaskRequest  true  "New task"
// @Success      201   {object}  models.Task
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	log := logging.For(c.Request.Context(), h.log)

	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("[task][create][bind][err]", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Debug("[task][create] payload", zap.String("title", req.Title), zap.Timep("due_date", req.DueDate))

	task, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, log, "create", err)
		return
	}
	log.Info("[task][create][ok]", zap.Int64("id", task.ID), zap.String("title", task.Title))
	c.JSON(http.StatusCreated, task)
}

// @Summary      Get a task
// @Tags         Tasks
// @Produce      json
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  models.Task
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	log := logging.For(c.Request.Context(), h.log)

	id, ok := parseID(c, log, "get")
	if !ok {
		return
	}
	task, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, log.With(zap.Int64("id", id)), "get", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// @Summary      List tasks
// @Description  All parameters are optional. from_date and to_date bound created_at inclusively; title_contains is case-insensitive.
// @Tags         Tasks
// @Produce      json
// @Param        status          query     string  false  "pending or completed"
// @Param        from_date       query     string  false  "RFC3339"
// @Param        to_date         query     string  false  "RFC3339"
// @Param        title_contains  query     string  false  "Substring of the title"
// @Success      200  {array}   models.Task
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/tasks [get]
func (h *TaskHandler) GetAll(c *gin.Context) {
	log := logging.For(c.Request.Context(), h.log)
	log.Debug("[task][list] call", zap.String("q", c.Request.URL.RawQuery))

	filter, err := parseFilter(c)
	if err != nil {
		log.Warn("[task][list][bad-query]", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tasks, err := h.service.GetAll(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, log, "list", err)
		return
	}
	log.Debug("[task][list][ok]", zap.Int("count", len(tasks)))
	c.JSON(http.StatusOK, tasks)
}

// @Summary      Complete a task
// @Description  Marks the task completed. Completing a completed task changes nothing.
// @Tags         Tasks
// @Produce      json
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  models.Task
// @Failure      404  {object}  map[string]string
// @Router       /api/tasks/{id}/complete [patch]
func (h *TaskHandler) Complete(c *gin.Context) {
	log := logging.For(c.Request.Context(), h.log)

	id, ok := parseID(c, log, "complete")
	if !ok {
		return
	}
	task, err := h.service.Complete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, log.With(zap.Int64("id", id)), "complete", err)
		return
	}
	log.Info("[task][complete][ok]", zap.Int64("id", id))
	c.JSON(http.StatusOK, task)
}

// @Summary      Delete a task
// @Tags         Tasks
// @Param        id   path  int  true  "Task ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /api/tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	log := logging.For(c.Request.Context(), h.log)

	id, ok := parseID(c, log, "delete")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, log.With(zap.Int64("id", id)), "delete", err)
		return
	}
	log.Info("[task][delete][ok]", zap.Int64("id", id))
	c.Status(http.StatusNoContent)
}

// @Summary      Download the task summary
// @Description  PDF report with totals by status and one row per task.
// @Tags         Tasks
// @Produce      application/pdf
// @Success      200  {file}  file
// @Failure      500  {object}  map[string]string
// @Router       /api/tasks/summary [get]
func (h *TaskHandler) Summary(c *gin.Context) {
	log := logging.For(c.Request.Context(), h.log)

	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, log, "summary", err)
		return
	}
	// rendered into a buffer so a failure can still become a JSON error
	var buf bytes.Buffer
	if err := h.pdfGen.GenerateSummary(&buf, *summary); err != nil {
		h.fail(c, log, "summary", err)
		return
	}
	log.Info("[task][summary][ok]", zap.Int("total", summary.Total), zap.Int("bytes", buf.Len()))
	c.Header("Content-Disposition", `attachment; filename="tasks_summary.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// fail maps service and repository errors to a status code.
func (h *TaskHandler) fail(c *gin.Context, log *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, repositories.ErrTaskNotFound):
		log.Info("[task]["+op+"][404]", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, services.ErrInvalidTask):
		log.Warn("[task]["+op+"][invalid]", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error("[task]["+op+"][err]", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + op + " task"})
	}
}
