package api

import (
	"net/http"
	"strconv"

	"Symposium/internal/chat_service/service"
	"Symposium/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// Handler 封装了聊天域所有 API endpoint 的处理函数。
type Handler struct {
	orchestrator *service.Orchestrator
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(o *service.Orchestrator) *Handler {
	return &Handler{orchestrator: o}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}

func parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		respondError(c, apperr.Newf(apperr.KindValidation, "invalid %s: %s", name, raw))
		return 0, false
	}
	return uint(id), true
}

// CreateSessionRequest 定义了创建会话请求的 JSON 结构。
type CreateSessionRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	Agents      []uint         `json:"agents" binding:"required"`
	Config      map[string]any `json:"config"`
}

// CreateSession 创建一个新的群聊会话。
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	session, err := h.orchestrator.CreateChat(c.Request.Context(), req.Name, req.Description, req.Agents, req.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GetSession 返回会话记录。
func (h *Handler) GetSession(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	session, err := h.orchestrator.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SendMessageRequest 定义了会话消息请求的 JSON 结构。
type SendMessageRequest struct {
	Content  string         `json:"content" binding:"required"`
	SenderID *uint          `json:"sender_id"`
	Metadata map[string]any `json:"metadata"`
}

// SendMessage 处理会话中的一条消息并返回按参与者顺序排列的结果。
func (h *Handler) SendMessage(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	turns, err := h.orchestrator.ProcessMessage(c.Request.Context(), id, req.Content, req.SenderID, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "turns": turns})
}

// EndSession 结束一个会话。
func (h *Handler) EndSession(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := h.orchestrator.EndChat(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "status": "completed"})
}

// GetHistory 返回会话历史，按创建时间降序。
func (h *Handler) GetHistory(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, apperr.Newf(apperr.KindValidation, "invalid limit: %s", raw))
			return
		}
		limit = parsed
	}
	messages, err := h.orchestrator.GetChatHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "messages": messages})
}

// ParticipantRequest 定义了参与者变更请求的 JSON 结构。
type ParticipantRequest struct {
	AgentID uint `json:"agent_id" binding:"required"`
}

// AddParticipant 把一个 agent 加入会话。
func (h *Handler) AddParticipant(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	if err := h.orchestrator.AddParticipant(c.Request.Context(), id, req.AgentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "agent_id": req.AgentID})
}

// RemoveParticipant 把一个 agent 移出会话。
func (h *Handler) RemoveParticipant(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	agentID, valid := parseID(c, "agent_id")
	if !valid {
		return
	}
	if err := h.orchestrator.RemoveParticipant(c.Request.Context(), id, agentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "agent_id": agentID})
}

// DiscussionRequest 定义了多轮讨论请求的 JSON 结构。
type DiscussionRequest struct {
	Topic  string `json:"topic" binding:"required"`
	Rounds int    `json:"rounds"`
}

// RunDiscussion 围绕主题驱动多轮讨论并返回每一轮的结果。
func (h *Handler) RunDiscussion(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req DiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	rounds, err := h.orchestrator.RunDiscussion(c.Request.Context(), id, req.Topic, req.Rounds)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "rounds": rounds})
}
