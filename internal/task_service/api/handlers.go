package api

import (
	"net/http"
	"strconv"

	"Symposium/internal/models"
	"Symposium/internal/task_service/service"
	"Symposium/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// Handler 封装了后台任务 API endpoint 的处理函数。
type Handler struct {
	coordinator *service.Coordinator
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(c *service.Coordinator) *Handler {
	return &Handler{coordinator: c}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}

// ChatTaskRequest 定义了群聊消息任务的提交结构。
type ChatTaskRequest struct {
	SessionID uint           `json:"session_id" binding:"required"`
	Content   string         `json:"content" binding:"required"`
	SenderID  *uint          `json:"sender_id"`
	Metadata  map[string]any `json:"metadata"`
}

// SubmitChatTask 提交一条异步处理的群聊消息。
func (h *Handler) SubmitChatTask(c *gin.Context) {
	var req ChatTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	task, err := h.coordinator.SubmitChatMessage(c.Request.Context(), req.SessionID, req.Content, req.SenderID, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "status": task.Status})
}

// CodeTaskRequest 定义了代码执行任务的提交结构。
type CodeTaskRequest struct {
	AgentID  uint   `json:"agent_id" binding:"required"`
	Language string `json:"language" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// SubmitCodeTask 提交一个异步的代码执行任务。
func (h *Handler) SubmitCodeTask(c *gin.Context) {
	var req CodeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	task, err := h.coordinator.SubmitCodeExecution(c.Request.Context(), req.AgentID, req.Language, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "status": task.Status})
}

// GetTask 返回完整的任务记录。
func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.coordinator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetTaskStatus 只返回任务状态，走缓存快路径。
func (h *Handler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	status, err := h.coordinator.Status(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": status})
}

// ListTasks 按提交时间降序分页返回任务记录。
func (h *Handler) ListTasks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	kind := models.TaskKind(c.Query("kind"))

	tasks, err := h.coordinator.List(c.Request.Context(), kind, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// RevokeTask 撤销一个尚未开始执行的任务。
func (h *Handler) RevokeTask(c *gin.Context) {
	taskID := c.Param("id")
	if err := h.coordinator.Revoke(c.Request.Context(), taskID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": models.TaskStatusRevoked})
}
