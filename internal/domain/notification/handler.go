package notification

import (
	"context"
	"log/slog"
	"net/http"

	"medinotify/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler exposes the thin administrative surface over the orchestrator.
// Every route is a pass-through to a domain component.
type Handler struct {
	service  *Service
	reporter *Reporter
	manager  *Manager
	quota    *Quota
	defs     []SubscriptionDef
}

// NewHandler creates the administrative handler.
func NewHandler(service *Service, reporter *Reporter, manager *Manager, quota *Quota, defs []SubscriptionDef) *Handler {
	return &Handler{
		service:  service,
		reporter: reporter,
		manager:  manager,
		quota:    quota,
		defs:     defs,
	}
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	common.Success(c, http.StatusOK, h.reporter.Snapshot(c.Request.Context()))
}

// RestartListeners handles POST /api/v1/realtime/restart
// Stops every subscription, waits for the stop barrier, and starts fresh.
func (h *Handler) RestartListeners(c *gin.Context) {
	h.manager.StopAll()

	// Subscriptions outlive the request; establish them on a fresh context.
	if err := h.manager.Start(context.Background(), h.defs); err != nil {
		slog.Error("listener restart incomplete", "error", err)
		common.Error(c, http.StatusBadGateway, "listener restart incomplete: "+err.Error())
		return
	}

	common.Success(c, http.StatusOK, gin.H{
		"message":       "listeners restarted",
		"subscriptions": h.manager.Status(),
	})
}

// ResetQuota handles POST /api/v1/quota/reset
// Exposed for external cron triggers alongside the scheduled reset task.
func (h *Handler) ResetQuota(c *gin.Context) {
	h.quota.Reset()
	slog.Info("daily quota reset via API")
	common.Success(c, http.StatusOK, h.quota.View())
}

// doctorVerificationRequest is the POST /send/doctor-verification payload.
type doctorVerificationRequest struct {
	DoctorID string `json:"doctor_id" binding:"required"`
	Status   string `json:"status" binding:"required,oneof=approved rejected"`
	AdminID  string `json:"admin_id"`
}

// SendDoctorVerification handles POST /api/v1/send/doctor-verification
func (h *Handler) SendDoctorVerification(c *gin.Context) {
	var req doctorVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	summary, err := h.service.SendDoctorVerification(c.Request.Context(), req.DoctorID, req.Status, req.AdminID)
	if err != nil {
		slog.Error("doctor verification send failed",
			"doctor_id", req.DoctorID,
			"status", req.Status,
			"error", err,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"summary": summary, "quota": h.quota.View()})
}

// campaignSendRequest is the POST /send/campaign payload.
type campaignSendRequest struct {
	CampaignID string `json:"campaign_id" binding:"required"`
}

// SendCampaign handles POST /api/v1/send/campaign
func (h *Handler) SendCampaign(c *gin.Context) {
	var req campaignSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	summary, err := h.service.SendCampaign(c.Request.Context(), req.CampaignID)
	if err != nil {
		slog.Error("manual campaign send failed", "campaign_id", req.CampaignID, "error", err)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"summary": summary, "quota": h.quota.View()})
}

// SendHealthTip handles POST /api/v1/send/health-tip
func (h *Handler) SendHealthTip(c *gin.Context) {
	var tip HealthTip
	if err := c.ShouldBindJSON(&tip); err != nil {
		common.Error(c, http.StatusBadRequest, "tip with title and content is required: "+err.Error())
		return
	}

	summary, err := h.service.SendHealthTip(c.Request.Context(), &tip)
	if err != nil {
		slog.Error("health tip send failed", "title", tip.Title, "error", err)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"summary": summary, "quota": h.quota.View()})
}

// testSendRequest is the POST /send/test payload.
type testSendRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SendTest handles POST /api/v1/send/test
func (h *Handler) SendTest(c *gin.Context) {
	var req testSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "email address is required: "+err.Error())
		return
	}

	summary, err := h.service.SendTest(c.Request.Context(), req.Email)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"summary": summary, "quota": h.quota.View()})
}

// GetPreferences handles GET /api/v1/preferences/:userID
func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := h.service.Preferences(c.Request.Context(), c.Param("userID"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferences handles PUT /api/v1/preferences/:userID
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var prefs EmailPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.service.UpdatePreferences(c.Request.Context(), c.Param("userID"), prefs); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"message": "preferences updated"})
}

// Unsubscribe handles POST /api/v1/unsubscribe/:userID
func (h *Handler) Unsubscribe(c *gin.Context) {
	if err := h.service.Unsubscribe(c.Request.Context(), c.Param("userID")); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"message": "unsubscribed from all messages"})
}

// RegisterRoutes registers the administrative routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.Stats)
	rg.POST("/realtime/restart", h.RestartListeners)
	rg.POST("/quota/reset", h.ResetQuota)
	rg.POST("/send/doctor-verification", h.SendDoctorVerification)
	rg.POST("/send/campaign", h.SendCampaign)
	rg.POST("/send/health-tip", h.SendHealthTip)
	rg.POST("/send/test", h.SendTest)
	rg.GET("/preferences/:userID", h.GetPreferences)
	rg.PUT("/preferences/:userID", h.UpdatePreferences)
	rg.POST("/unsubscribe/:userID", h.Unsubscribe)
}
