package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"AlertRadar/pkg/delivery"
)

const defaultCanaryName = "Canary Test"

type canaryRequest struct {
	To   string `json:"to"`
	Name string `json:"name"`
}

type canaryResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	SentTo   string `json:"sent_to,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// CanaryEmail 发送一封测试邮件验证 SMTP 链路
//
//	POST /canary/email
//	Authorization: Bearer <CANARY_TOKEN>
//	{"to": "user@example.com", "name": "Test User"}
func (h *Handlers) CanaryEmail(c *gin.Context) {
	if !h.canaryAuthorized(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, canaryResponse{
			Status:  "error",
			Message: "unauthorized, provide Authorization: Bearer <CANARY_TOKEN>",
		})
		return
	}

	var req canaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, canaryResponse{Status: "error", Message: "invalid JSON body: " + err.Error()})
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		c.JSON(http.StatusBadRequest, canaryResponse{Status: "error", Message: `"to" field is required`})
		return
	}
	if req.Name == "" {
		req.Name = defaultCanaryName
	}

	if h.deps.Canary == nil {
		c.JSON(http.StatusServiceUnavailable, canaryResponse{Status: "error", Message: "SMTP not configured"})
		return
	}

	start := time.Now()
	err := h.deps.Canary.SendTest(req.To, req.Name)
	duration := time.Since(start)

	switch {
	case errors.Is(err, delivery.ErrSMTPNotConfigured):
		c.JSON(http.StatusServiceUnavailable, canaryResponse{Status: "error", Message: "SMTP not configured"})
	case err != nil:
		h.logger.Error("巡检邮件发送失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, canaryResponse{
			Status:   "error",
			Message:  "email delivery failed: " + err.Error(),
			Duration: duration.String(),
		})
	default:
		h.logger.Info("巡检邮件已发送", zap.String("to", req.To), zap.Duration("duration", duration))
		c.JSON(http.StatusOK, canaryResponse{
			Status:   "ok",
			Message:  "canary email sent successfully",
			SentTo:   req.To,
			Duration: duration.String(),
		})
	}
}

// canaryAuthorized 未配置 token 时拒绝所有请求
func (h *Handlers) canaryAuthorized(header string) bool {
	token := h.deps.CanaryToken.Value()
	if token == "" {
		return false
	}
	expected := "Bearer " + token
	return subtle.ConstantTimeCompare([]byte(header), []byte(expected)) == 1
}
