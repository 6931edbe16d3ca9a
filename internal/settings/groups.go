package settings

import (
	"context"
	"fmt"
	"regexp"
)

// GroupSettings returns the validated contents of global/groups.yml
func (r *Resolver) GroupSettings(ctx context.Context) (*Settings, error) {
	if err := r.verify(r.root); err != nil {
		return nil, err
	}
	return r.groupSettings(ctx)
}

// groupSettings reads groups.yml from an already verified repository
func (r *Resolver) groupSettings(ctx context.Context) (*Settings, error) {
	tree, origins, err := r.readLayer(ctx, NewMap(), NewOrigins(), OriginGlobalGroups, scope{}, DirGlobal, FileGroups)
	if err != nil {
		return nil, err
	}
	validated, _, err := r.groupsSchema.Validate(tree, origins)
	if err != nil {
		return nil, err
	}
	return &Settings{Tree: validated, Origins: origins}, nil
}

// Groups returns the names of the groups whose regex matches hostname,
// in declaration order. With an empty hostname every group is returned.
func (r *Resolver) Groups(ctx context.Context, hostname string) ([]string, error) {
	if err := r.verify(r.root); err != nil {
		return nil, err
	}
	return r.groups(ctx, hostname)
}

func (r *Resolver) groups(ctx context.Context, hostname string) ([]string, error) {
	gs, err := r.groupSettings(ctx)
	if err != nil {
		return nil, err
	}
	return matchGroups(gs.Tree, hostname)
}

// matchGroups applies the group definitions of a validated groups tree.
// A regex matches when it matches at the start of the hostname.
func matchGroups(tree *Map, hostname string) ([]string, error) {
	groups := []string{}
	list, _ := tree.Get("groups")
	for _, item := range list.Items() {
		gv, _ := item.Map().Get("group")
		def := gv.Map()
		if def == nil {
			continue
		}
		nv, ok := def.Get("name")
		name, isStr := nv.Str()
		if !ok || !isStr {
			continue
		}
		rv, ok := def.Get("regex")
		pattern, isStr := rv.Str()
		if !ok || !isStr {
			continue
		}
		if hostname != "" {
			re, err := regexp.Compile("^(?:" + pattern + ")")
			if err != nil {
				return nil, fmt.Errorf("group %s: invalid regex: %w", name, err)
			}
			if !re.MatchString(hostname) {
				continue
			}
		}
		groups = append(groups, name)
	}
	return groups, nil
}
