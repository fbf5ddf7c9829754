package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"alert-service/internal/alerts"
	"alert-service/internal/db"
	"alert-service/internal/logging"
	"alert-service/internal/models"
	"alert-service/internal/otp"
)

type Handler struct {
	alerts *alerts.Service
	otp    *otp.Service
	db     *db.DB
	logger *logging.Logger
}

func NewHandler(alertSvc *alerts.Service, otpSvc *otp.Service, database *db.DB, logger *logging.Logger) *Handler {
	return &Handler{alerts: alertSvc, otp: otpSvc, db: database, logger: logger}
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrAlreadyUsed),
		errors.Is(err, models.ErrExpired),
		errors.Is(err, models.ErrAttemptsExceeded):
		return http.StatusConflict
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) CreateAlert(c *gin.Context) {
	var req models.AlertCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid alert submission: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.alerts.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alert_id": alert.ID, "status": alert.Status})
}

func (h *Handler) GetAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	alert, err := h.alerts.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) UpdateAlertStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	var upd models.AlertStatusUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.logger.Errorf("Invalid status update: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.alerts.UpdateStatus(c.Request.Context(), id, upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) FindNearbyAlerts(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lat"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lng"})
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius_km", "5"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid radius_km"})
		return
	}

	found, err := h.alerts.FindNearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": found, "count": len(found)})
}

func (h *Handler) GetAlertsByRequester(c *gin.Context) {
	requesterID := c.Param("user_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, total, err := h.alerts.History(c.Request.Context(), requesterID, limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list, "total": total})
}

type otpRequest struct {
	Target  string                  `json:"target" binding:"required"`
	Purpose models.ChallengePurpose `json:"purpose" binding:"required"`
}

type otpVerifyRequest struct {
	Target  string                  `json:"target" binding:"required"`
	Purpose models.ChallengePurpose `json:"purpose" binding:"required"`
	Code    string                  `json:"code" binding:"required"`
}

func (h *Handler) IssueOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	expiresIn, err := h.otp.Issue(c.Request.Context(), req.Target, req.Purpose)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expires_in": int(expiresIn.Seconds())})
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	verified, err := h.otp.Verify(c.Request.Context(), req.Target, req.Purpose, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": verified})
}

func (h *Handler) ResendOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	expiresIn, err := h.otp.Resend(c.Request.Context(), req.Target, req.Purpose)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expires_in": int(expiresIn.Seconds())})
}

func (h *Handler) CreateContact(c *gin.Context) {
	var req models.ContactCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request body for contact: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Relationship == "" {
		req.Relationship = models.RelationOther
	}
	if !models.ValidRelationship(req.Relationship) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown relationship"})
		return
	}

	contact, err := h.db.CreateContact(c.Request.Context(), models.EmergencyContact{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Relationship: req.Relationship,
		IsPrimary:    req.IsPrimary,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *Handler) GetContactsByOwner(c *gin.Context) {
	contacts, err := h.db.ActiveContactsByOwner(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *Handler) UpdateContact(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contact id"})
		return
	}

	var upd models.ContactUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if upd.Relationship != nil && !models.ValidRelationship(*upd.Relationship) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown relationship"})
		return
	}

	contact, err := h.db.UpdateContact(c.Request.Context(), id, upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) DeleteContact(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contact id"})
		return
	}

	if err := h.db.DeleteContact(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
