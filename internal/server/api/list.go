package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/contexts"
	"github.com/leadhub/leadhub/internal/objects"
	"github.com/leadhub/leadhub/internal/server/biz"
)

type ListHandlersParams struct {
	fx.In

	UserListService *biz.UserListService
	ExportService   *biz.ExportService
}

type ListHandlers struct {
	UserListService *biz.UserListService
	ExportService   *biz.ExportService
}

func NewListHandlers(params ListHandlersParams) *ListHandlers {
	return &ListHandlers{
		UserListService: params.UserListService,
		ExportService:   params.ExportService,
	}
}

type ListSummaryRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type StoreListRequest struct {
	UserID    string  `json:"userId"   binding:"required"`
	ListName  string  `json:"listName" binding:"required"`
	RecordIDs []int64 `json:"rowIds"   binding:"required"`
}

type StoreListResponse struct {
	Message  string `json:"message"`
	Inserted int    `json:"inserted"`
}

type ShowListRequest struct {
	UserID   string `json:"userId"   binding:"required"`
	ListName string `json:"listName" binding:"required"`
	Page     int    `json:"page"`
}

type CreateListRequest struct {
	UserID   string `json:"userId"   binding:"required"`
	ListName string `json:"listName" binding:"required"`
}

type ExportListRequest struct {
	UserID   string `json:"userId"   binding:"required"`
	ListName string `json:"listName" binding:"required"`
	Email    string `json:"email"    binding:"required"`
}

type ExportListResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}

// bindUser decodes the body and tags the request context with the user.
func bindUser[T any](c *gin.Context, req *T, userID func(*T) string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		JSONError(c, http.StatusBadRequest, fmt.Errorf("%w: %s", biz.ErrValidation, "invalid request format"))
		return false
	}

	c.Request = c.Request.WithContext(contexts.WithUserID(c.Request.Context(), userID(req)))

	return true
}

func (h *ListHandlers) Summary(c *gin.Context) {
	var req ListSummaryRequest
	if !bindUser(c, &req, func(r *ListSummaryRequest) string { return r.UserID }) {
		return
	}

	summary, err := h.UserListService.GetListSummary(c.Request.Context(), req.UserID)
	if err != nil {
		JSONBizError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *ListHandlers) Store(c *gin.Context) {
	var req StoreListRequest
	if !bindUser(c, &req, func(r *StoreListRequest) string { return r.UserID }) {
		return
	}

	inserted, err := h.UserListService.StoreList(c.Request.Context(), req.UserID, req.ListName, req.RecordIDs)
	if err != nil {
		JSONBizError(c, err)
		return
	}

	message := "List updated"
	if inserted == 0 {
		message = "All row ids already exist in this list"
	}

	c.JSON(http.StatusOK, StoreListResponse{Message: message, Inserted: inserted})
}

func (h *ListHandlers) Show(c *gin.Context) {
	var req ShowListRequest
	if !bindUser(c, &req, func(r *ShowListRequest) string { return r.UserID }) {
		return
	}

	records, err := h.UserListService.ShowList(c.Request.Context(), req.UserID, req.ListName, req.Page)
	if err != nil {
		JSONBizError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *ListHandlers) Create(c *gin.Context) {
	var req CreateListRequest
	if !bindUser(c, &req, func(r *CreateListRequest) string { return r.UserID }) {
		return
	}

	err := h.UserListService.CreateEmptyList(c.Request.Context(), req.UserID, req.ListName)
	if err != nil {
		if errors.Is(err, biz.ErrListExists) {
			JSONError(c, http.StatusConflict, errors.New("List already exists"))
			return
		}

		JSONBizError(c, err)

		return
	}

	c.JSON(http.StatusOK, objects.MessageResponse{
		Message: fmt.Sprintf("Empty list '%s' created successfully", req.ListName),
	})
}

func (h *ListHandlers) Export(c *gin.Context) {
	var req ExportListRequest
	if !bindUser(c, &req, func(r *ExportListRequest) string { return r.UserID }) {
		return
	}

	jobID, err := h.ExportService.Enqueue(c.Request.Context(), req.UserID, req.ListName, req.Email)
	if err != nil {
		if errors.Is(err, biz.ErrEmptyList) {
			JSONError(c, http.StatusNotFound, errors.New("List is empty"))
			return
		}

		JSONBizError(c, err)

		return
	}

	c.JSON(http.StatusAccepted, ExportListResponse{
		Message: "Your export has been queued and will be emailed shortly.",
		JobID:   jobID,
	})
}
