package store

import (
	"sort"

	"github.com/flagforge/flagforge/internal/model"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage applies the control plane's pagination defaults: page 1,
// page size 20, clamped into [1, 100].
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = defaultPage
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func slice[T any](items []T, page, pageSize int) []T {
	page, pageSize = normalizePage(page, pageSize)
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func paginateAudiences(items []model.Audience, page, pageSize int) Page[model.Audience] {
	return Page[model.Audience]{Items: slice(items, page, pageSize), Total: len(items)}
}

func paginateExperiments(items []model.Experiment, page, pageSize int) Page[model.Experiment] {
	return Page[model.Experiment]{Items: slice(items, page, pageSize), Total: len(items)}
}

func sortEnvironments(envs []model.Environment) {
	sort.Slice(envs, func(i, j int) bool { return envs[i].CreatedAt.Before(envs[j].CreatedAt) })
}

func sortAudiences(auds []model.Audience) {
	sort.Slice(auds, func(i, j int) bool { return auds[i].CreatedAt.Before(auds[j].CreatedAt) })
}

func sortExperiments(exps []model.Experiment) {
	sort.Slice(exps, func(i, j int) bool { return exps[i].CreatedAt.Before(exps[j].CreatedAt) })
}
