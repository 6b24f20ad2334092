package registry

import (
	"context"

	"github.com/craftops/modserver/internal/model"
	"go.uber.org/zap"
)

// Resolver walks a project's dependency graph and produces an ordered,
// deduplicated install plan.
type Resolver struct {
	client *Client
	logger *zap.Logger
}

// NewResolver creates a resolver on top of a registry client
func NewResolver(client *Client, logger *zap.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

type resolveFrame struct {
	ref  string // slug or project id
	root bool
}

// Resolve produces the install plan for rootSlug on the given target
// environment, parent before children. Each distinct project appears at
// most once. A registry failure on the root is returned; a failure on
// any other branch drops that branch and resolution continues. An empty
// plan means no installable version chain exists.
func (r *Resolver) Resolve(ctx context.Context, rootSlug, gameVersion string, loader model.Loader) ([]model.Resolution, error) {
	visited := make(map[string]bool)
	var plan []model.Resolution

	// Explicit work stack instead of recursion so deep graphs cannot
	// exhaust the goroutine stack.
	stack := []resolveFrame{{ref: rootSlug, root: true}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		project, err := r.client.GetProject(ctx, frame.ref)
		if err != nil {
			if frame.root {
				return nil, err
			}
			r.logger.Warn("dropping unresolvable dependency",
				zap.String("ref", frame.ref),
				zap.Error(err),
			)
			continue
		}

		if visited[project.ID] {
			continue
		}
		visited[project.ID] = true

		versions, err := r.client.GetVersions(ctx, project.Slug, []string{gameVersion}, []string{string(loader)})
		if err != nil {
			if frame.root {
				return nil, err
			}
			r.logger.Warn("dropping dependency: versions unavailable",
				zap.String("slug", project.Slug),
				zap.Error(err),
			)
			continue
		}

		compatible := FilterCompatible(versions, gameVersion, loader, true)
		if len(compatible) == 0 {
			r.logger.Warn("no compatible version",
				zap.String("slug", project.Slug),
				zap.String("game_version", gameVersion),
				zap.String("loader", string(loader)),
			)
			continue
		}

		best := compatible[0]
		plan = append(plan, model.Resolution{
			Project: *project,
			Version: best,
			File:    PickFile(&best),
		})

		// Push declared dependencies in reverse so the first declared
		// one is resolved next. Optional dependencies are installed the
		// same as required ones; incompatible and embedded are skipped.
		deps := best.Dependencies
		for i := len(deps) - 1; i >= 0; i-- {
			d := deps[i]
			if d.DependencyType != model.DependencyRequired && d.DependencyType != model.DependencyOptional {
				continue
			}
			if d.ProjectID == "" || visited[d.ProjectID] {
				continue
			}
			stack = append(stack, resolveFrame{ref: d.ProjectID})
		}
	}

	return plan, nil
}
