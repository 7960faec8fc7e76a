package adapters

import (
	"context"

	"github.com/Tap30/pulse-go/value"
)

// Adapter is the backend side of the channel: one implementation per target
// platform. Every method either completes or returns a structured failure.
// Implementations must not keep references to argument maps after a
// method returns; copy whatever must outlive the call.
type Adapter interface {
	Initialize(ctx context.Context, opts InitOptions) error

	Track(ctx context.Context, event string, props *value.Map) error
	TrackWithGroups(ctx context.Context, event string, props, groups *value.Map) error
	TimeEvent(ctx context.Context, event string) error

	Identify(ctx context.Context, distinctID string) error
	Alias(ctx context.Context, alias, distinctID string) error
	DistinctID(ctx context.Context) (string, error)

	RegisterSuperProperties(ctx context.Context, props *value.Map) error
	RegisterSuperPropertiesOnce(ctx context.Context, props *value.Map) error
	UnregisterSuperProperty(ctx context.Context, name string) error
	ClearSuperProperties(ctx context.Context) error

	UpdateProfile(ctx context.Context, update ProfileUpdate) error
	SetGroup(ctx context.Context, m GroupMembership) error
	AddGroup(ctx context.Context, m GroupMembership) error
	RemoveGroup(ctx context.Context, m GroupMembership) error

	OptOutTracking(ctx context.Context) error
	OptInTracking(ctx context.Context) error
	HasOptedOutTracking(ctx context.Context) (bool, error)

	// Flush drains events the backend buffered before the call.
	Flush(ctx context.Context) error
	Reset(ctx context.Context) error
}
