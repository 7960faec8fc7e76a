package pulse

import (
	"github.com/Tap30/pulse-go/adapters"
	"github.com/Tap30/pulse-go/value"
)

// People updates the profile of the current user.
type People struct {
	client *Client
}

func (p *People) update(method string, build func(*callArgs)) *Future[struct{}] {
	return submit[struct{}](p.client, method, build, nil)
}

// single builds a one-entry properties map from name and v.
func single(b *callArgs, name string, v any) {
	if err := validIdentifier(b.method, adapters.ArgPropertyName, name); err != nil {
		b.fail(err)
		return
	}
	b.properties(adapters.ArgProperties, map[string]any{name: v})
}

// Set writes props to the profile, overwriting existing values.
func (p *People) Set(props map[string]any) *Future[struct{}] {
	return p.update(adapters.MethodPeopleSet, func(b *callArgs) {
		b.merged(adapters.ArgProperties, props)
	})
}

// SetOnce writes props that are not already present.
func (p *People) SetOnce(props map[string]any) *Future[struct{}] {
	return p.update(adapters.MethodPeopleSetOnce, func(b *callArgs) {
		b.merged(adapters.ArgProperties, props)
	})
}

// Increment adds each numeric value in props to the matching property.
func (p *People) Increment(props map[string]any) *Future[struct{}] {
	return p.update(adapters.MethodPeopleIncrement, func(b *callArgs) {
		b.properties(adapters.ArgProperties, props)
	})
}

// Append adds v to the list property name.
func (p *People) Append(name string, v any) *Future[struct{}] {
	return p.update(adapters.MethodPeopleAppend, func(b *callArgs) { single(b, name, v) })
}

// Union merges values into the list property name, skipping duplicates.
func (p *People) Union(name string, values []any) *Future[struct{}] {
	return p.update(adapters.MethodPeopleUnion, func(b *callArgs) { single(b, name, values) })
}

// Remove drops v from the list property name.
func (p *People) Remove(name string, v any) *Future[struct{}] {
	return p.update(adapters.MethodPeopleRemove, func(b *callArgs) { single(b, name, v) })
}

// Unset deletes property name from the profile.
func (p *People) Unset(name string) *Future[struct{}] {
	return p.update(adapters.MethodPeopleUnset, func(b *callArgs) { unset(b, name) })
}

// DeleteUser deletes the whole profile.
func (p *People) DeleteUser() *Future[struct{}] {
	return p.update(adapters.MethodPeopleDeleteUser, nil)
}

func unset(b *callArgs, name string) {
	if err := validIdentifier(b.method, adapters.ArgPropertyName, name); err != nil {
		b.fail(err)
		return
	}
	b.set(adapters.ArgProperties, value.MapValue(value.MapOf(name, value.Null())))
}

// Group updates the profile of one group.
type Group struct {
	client *Client
	key    string
	id     any
}

func (g *Group) update(method string, build func(*callArgs)) *Future[struct{}] {
	return submit[struct{}](g.client, method, func(b *callArgs) {
		b.identifier(adapters.ArgGroupKey, g.key)
		b.value(adapters.ArgGroupID, g.id)
		if build != nil {
			build(b)
		}
	}, nil)
}

// Set writes props to the group profile.
func (g *Group) Set(props map[string]any) *Future[struct{}] {
	return g.update(adapters.MethodGroupSetProperties, func(b *callArgs) {
		b.properties(adapters.ArgProperties, props)
	})
}

// SetOnce writes props that are not already present on the group.
func (g *Group) SetOnce(props map[string]any) *Future[struct{}] {
	return g.update(adapters.MethodGroupSetPropertyOnce, func(b *callArgs) {
		b.properties(adapters.ArgProperties, props)
	})
}

// Union merges values into the list property name.
func (g *Group) Union(name string, values []any) *Future[struct{}] {
	return g.update(adapters.MethodGroupUnionProperty, func(b *callArgs) { single(b, name, values) })
}

// Remove drops v from the list property name.
func (g *Group) Remove(name string, v any) *Future[struct{}] {
	return g.update(adapters.MethodGroupRemovePropertyValue, func(b *callArgs) { single(b, name, v) })
}

// Unset deletes property name from the group profile.
func (g *Group) Unset(name string) *Future[struct{}] {
	return g.update(adapters.MethodGroupUnsetProperty, func(b *callArgs) { unset(b, name) })
}

// DeleteGroup deletes the group profile.
func (g *Group) DeleteGroup() *Future[struct{}] {
	return g.update(adapters.MethodDeleteGroup, nil)
}
