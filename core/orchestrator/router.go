package orchestrator

import (
	"fmt"
	"sort"

	"github.com/adalundhe/prism/core/errors"
	"github.com/adalundhe/prism/core/token"
)

// TaskRouter splits a multi-category task into one sub-task per external
// dependency group, so categories served by the same dependency share a
// single model call while routing stays out of the extraction agent.
type TaskRouter struct {
	registry *token.Registry
}

// NewTaskRouter creates a router over the category registry.
func NewTaskRouter(registry *token.Registry) *TaskRouter {
	return &TaskRouter{registry: registry}
}

// Route groups the task's categories by dependency group, producing one
// sub-task per group in stable group order. Sub-task ids extend the parent
// id with the group name.
func (r *TaskRouter) Route(task token.ExtractionTask) ([]token.ExtractionTask, error) {
	groups := make(map[string][]token.Category)
	for _, category := range task.Categories {
		spec, ok := r.registry.Get(category)
		if !ok {
			return nil, errors.New(errors.KindValidation,
				fmt.Sprintf("category %q is not registered", category), nil)
		}
		groups[spec.Group] = append(groups[spec.Group], category)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	subTasks := make([]token.ExtractionTask, 0, len(names))
	for _, name := range names {
		sub := task
		sub.ID = fmt.Sprintf("%s/%s", task.ID, name)
		sub.Categories = groups[name]
		subTasks = append(subTasks, sub)
	}
	return subTasks, nil
}

// GroupOf returns the dependency group serving a category.
func (r *TaskRouter) GroupOf(category token.Category) (string, error) {
	spec, ok := r.registry.Get(category)
	if !ok {
		return "", errors.New(errors.KindValidation,
			fmt.Sprintf("category %q is not registered", category), nil)
	}
	return spec.Group, nil
}
