package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/objects"
	"github.com/leadhub/leadhub/internal/server/biz"
)

type AccessHandlersParams struct {
	fx.In

	AccessService *biz.AccessService
	RecordStore   biz.RecordStore
}

type AccessHandlers struct {
	AccessService *biz.AccessService
	RecordStore   biz.RecordStore
}

func NewAccessHandlers(params AccessHandlersParams) *AccessHandlers {
	return &AccessHandlers{
		AccessService: params.AccessService,
		RecordStore:   params.RecordStore,
	}
}

type GrantAccessRequest struct {
	UserID    string  `json:"userId" binding:"required"`
	RecordIDs []int64 `json:"rowIds" binding:"required,min=1,max=1000"`
	// Type is email, phone or both.
	Type string `json:"type" binding:"required"`
}

// RevealedRecord carries the fields a grant unlocked.
type RevealedRecord struct {
	ID         int64              `json:"rowId"`
	Email      *string            `json:"email"`
	Phone      *string            `json:"phone"`
	AccessTier objects.AccessTier `json:"accessType"`
}

type AccessMapRequest struct {
	UserID    string  `json:"userId" binding:"required"`
	RecordIDs []int64 `json:"rowIds"`
}

// Grant records the requested tier for every record and returns the fields
// the resulting tiers reveal.
func (h *AccessHandlers) Grant(c *gin.Context) {
	var req GrantAccessRequest
	if !bindUser(c, &req, func(r *GrantAccessRequest) string { return r.UserID }) {
		return
	}

	requested, err := objects.ParseAccessTier(req.Type)
	if err != nil || requested == objects.AccessTierNone || requested == objects.AccessTierFull {
		JSONError(c, http.StatusBadRequest, fmt.Errorf("%w: type must be email, phone or both", biz.ErrValidation))
		return
	}

	ctx := c.Request.Context()
	ids := lo.Uniq(req.RecordIDs)
	tiers := make(map[int64]objects.AccessTier, len(ids))

	for _, id := range ids {
		tier, err := h.AccessService.RecordAccess(ctx, req.UserID, id, requested)
		if err != nil {
			JSONBizError(c, err)
			return
		}

		tiers[id] = tier
	}

	records, err := h.RecordStore.FetchRecordsByIDs(ctx, ids)
	if err != nil {
		JSONBizError(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(records, func(r objects.Record, _ int) RevealedRecord {
		masked := objects.MaskRecord(r, tiers[r.ID])

		return RevealedRecord{
			ID:         r.ID,
			Email:      masked.Email,
			Phone:      masked.Phone,
			AccessTier: masked.AccessTier,
		}
	}))
}

// Map returns the stored tier of each requested record. Records without a
// grant are omitted.
func (h *AccessHandlers) Map(c *gin.Context) {
	var req AccessMapRequest
	if !bindUser(c, &req, func(r *AccessMapRequest) string { return r.UserID }) {
		return
	}

	tiers, err := h.AccessService.GetAccessMap(c.Request.Context(), req.UserID, req.RecordIDs)
	if err != nil {
		JSONBizError(c, err)
		return
	}

	c.JSON(http.StatusOK, tiers)
}
