package library

import (
	"context"

	"github.com/oe-mirrors/pkgctl/internal/pkgname"
)

// WithDependencies returns the install closure of roots: an ordered list
// such that every dependency appears before its dependents and each name
// appears at most once, per spec.md §4.F. Meta-packages (empty version) are
// excluded from the result but their dependencies are still visited.
//
// A visited set alone would recurse forever on a dependency cycle, since
// recording happens post-order (after visiting dependencies); an
// in-progress set additionally tracks names currently being visited and
// treats re-entry into one as "already handled", terminating cycles
// correctly (spec.md §4.F's corrected algorithm — the in-progress check the
// original recursive implementation omitted).
func (l *Library) WithDependencies(ctx context.Context, roots []pkgname.Name) ([]pkgname.Name, error) {
	var list []pkgname.Name
	recorded := map[string]bool{}
	inProgress := map[string]bool{}

	var visit func(name pkgname.Name) error
	visit = func(name pkgname.Name) error {
		key := name.String()
		if recorded[key] || inProgress[key] {
			return nil
		}
		inProgress[key] = true
		defer delete(inProgress, key)

		pkg, err := l.backend.GetPackageDetail(ctx, name)
		if err != nil {
			return err
		}
		deps, err := pkg.DependsNames()
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		if !pkg.IsMeta() && !recorded[key] {
			list = append(list, name)
			recorded[key] = true
		}
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}
	return list, nil
}
