package controlplane

import (
	"github.com/flagforge/flagforge/internal/model"
)

// pagination is the envelope every list endpoint wraps its data in.
type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func paginationOf(page, pageSize, total int) pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

type listEnvelope[T any] struct {
	Data       []T        `json:"data"`
	Pagination pagination `json:"pagination"`
}

type createEnvironmentRequest struct {
	Name string `json:"name"`
}

type createAudienceRequest struct {
	EnvironmentID string                `json:"environmentId"`
	Name          string                `json:"name"`
	Rules         []model.TargetingRule `json:"rules"`
}

type updateAudienceRequest struct {
	Name  *string               `json:"name"`
	Rules []model.TargetingRule `json:"rules"`
}

type createExperimentRequest struct {
	EnvironmentID  string                `json:"environmentId"`
	Key            string                `json:"key"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	AudienceID     *string               `json:"audienceId"`
	TargetingRules []model.TargetingRule `json:"targetingRules"`
}

type updateExperimentRequest struct {
	Name           *string                `json:"name"`
	Description     *string                `json:"description"`
	AudienceID      *string                `json:"audienceId"`
	TargetingRules []model.TargetingRule `json:"targetingRules"`
}

type updateStatusRequest struct {
	Status model.Status `json:"status"`
}

type variantCreateInput struct {
	Key     string         `json:"key"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

type variantUpdateInput struct {
	ID      string         `json:"id"`
	Name    *string        `json:"name"`
	Payload map[string]any `json:"payload"`
}

type variantBatchRequest struct {
	Create []variantCreateInput `json:"create"`
	Update []variantUpdateInput `json:"update"`
	Delete []string             `json:"delete"`
}

type allocationInput struct {
	VariantID  string `json:"variantId"`
	RangeStart int    `json:"rangeStart"`
	RangeEnd   int    `json:"rangeEnd"`
}

type replaceAllocationsRequest struct {
	Allocations []allocationInput `json:"allocations"`
}
