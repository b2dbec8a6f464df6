package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "civic-reporting-system/pkg/errors"
	"civic-reporting-system/pkg/middleware"
	"civic-reporting-system/pkg/response"
	"civic-reporting-system/services/report-service/models"
	"civic-reporting-system/services/report-service/service"
)

type reportService interface {
	Submit(ctx context.Context, in service.SubmitInput) (*service.SubmitResult, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, f service.ListFilter) ([]models.Report, error)
	Update(ctx context.Context, id string, in service.UpdateInput) (*models.Report, error)
	LogNote(ctx context.Context, id, admin, note string) (*models.Report, error)
	Analytics(ctx context.Context) (*service.Analytics, error)
}

type ReportHandler struct {
	svc    reportService
	logger *zap.Logger
}

func NewReportHandler(svc reportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	RegisterValidators()
	return &ReportHandler{svc: svc, logger: logger}
}

// Register mounts the report routes. auth must populate middleware.UserClaims.
func (h *ReportHandler) Register(r gin.IRouter, auth gin.HandlerFunc) {
	admin := middleware.RequireRole(middleware.RoleAdmin)

	reports := r.Group("/api/reports", auth)
	reports.POST("", h.Create)
	reports.GET("", admin, h.List)
	reports.GET("/mine", h.Mine)
	reports.GET("/:id", h.Get)
	reports.PUT("/:id", admin, h.Update)
	reports.PUT("/:id/note", admin, h.AddNote)

	r.GET("/admin/analytics", auth, admin, h.Analytics)
}

type createReportRequest struct {
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description" binding:"required"`
	Location      string   `json:"location" binding:"omitempty,latlng"`
	Landmark      string   `json:"landmark"`
	Department    string   `json:"department" binding:"required"`
	Category      string   `json:"category"`
	Priority      string   `json:"priority"`
	ReporterName  string   `json:"reporter_name"`
	ReporterEmail string   `json:"reporter_email" binding:"omitempty,email"`
	Images        []string `json:"images" binding:"omitempty,dive,required"`
}

type updateReportRequest struct {
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	Description *string `json:"description"`
	Notes       *string `json:"notes"`
}

type noteRequest struct {
	Note  string `json:"note" binding:"required"`
	Admin string `json:"admin"`
}

func (h *ReportHandler) Create(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	in := service.SubmitInput{
		Title:         req.Title,
		Description:   req.Description,
		LocationText:  req.Location,
		Landmark:      req.Landmark,
		Department:    req.Department,
		Category:      req.Category,
		Priority:      req.Priority,
		ReporterName:  req.ReporterName,
		ReporterEmail: req.ReporterEmail,
		UserID:        claims.UserID,
		Images:        req.Images,
	}
	if in.ReporterName == "" {
		in.ReporterName = claims.Name
	}
	if in.ReporterEmail == "" {
		in.ReporterEmail = claims.Email
	}

	res, err := h.svc.Submit(c.Request.Context(), in)
	if err != nil {
		h.logger.Warn("submit report failed", zap.String("user_id", claims.UserID), zap.Error(err))
		response.Error(c, err)
		return
	}

	data := gin.H{"id": res.ID, "clustered": res.Clustered}
	if res.Clustered {
		response.Success(c, http.StatusOK, "Report clustered with identical existing issue", data)
		return
	}
	response.Success(c, http.StatusCreated, "Report created successfully", data)
}

func (h *ReportHandler) List(c *gin.Context) {
	reports, err := h.svc.List(c.Request.Context(), service.ListFilter{
		Department: c.Query("department"),
		Status:     c.Query("status"),
		UserID:     c.Query("user_id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Reports retrieved", reports)
}

func (h *ReportHandler) Mine(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	reports, err := h.svc.List(c.Request.Context(), service.ListFilter{
		UserID: claims.UserID,
		Status: c.Query("status"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Reports retrieved", reports)
}

func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Report retrieved", report)
}

func (h *ReportHandler) Update(c *gin.Context) {
	var req updateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	report, err := h.svc.Update(c.Request.Context(), c.Param("id"), service.UpdateInput{
		Status:      req.Status,
		Priority:    req.Priority,
		Description: req.Description,
		Notes:       req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Report updated successfully", report)
}

func (h *ReportHandler) AddNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "note text is required"))
		return
	}

	admin := req.Admin
	if admin == "" {
		if claims, ok := middleware.Claims(c); ok {
			admin = claims.Name
			if admin == "" {
				admin = claims.Email
			}
		}
	}

	report, err := h.svc.LogNote(c.Request.Context(), c.Param("id"), admin, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Reason logged. Escalation timer reset.", report)
}

func (h *ReportHandler) Analytics(c *gin.Context) {
	stats, err := h.svc.Analytics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Analytics retrieved", stats)
}
