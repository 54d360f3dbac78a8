package notify

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/kart-io/notifykit/pkg/channels/bark"
	"github.com/kart-io/notifykit/pkg/channels/chanify"
	"github.com/kart-io/notifykit/pkg/channels/console"
	"github.com/kart-io/notifykit/pkg/channels/dingtalk"
	"github.com/kart-io/notifykit/pkg/channels/email"
	"github.com/kart-io/notifykit/pkg/channels/feishu"
	"github.com/kart-io/notifykit/pkg/channels/ntfy"
	"github.com/kart-io/notifykit/pkg/channels/pushdeer"
	"github.com/kart-io/notifykit/pkg/channels/pushover"
	"github.com/kart-io/notifykit/pkg/channels/redis"
	"github.com/kart-io/notifykit/pkg/channels/wechat"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

// Registry maps lowercase channel names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]channel.Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]channel.Factory)}
}

// DefaultRegistry returns a registry holding every built-in channel plus the
// "ding" and "wecom" aliases. Each call returns a fresh registry.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(bark.Name, bark.Factory)
	r.Register(dingtalk.Name, dingtalk.Factory)
	r.Register(dingtalk.Alias, dingtalk.Factory)
	r.Register(wechat.Name, wechat.Factory)
	r.Register(wechat.Alias, wechat.Factory)
	r.Register(feishu.Name, feishu.Factory)
	r.Register(email.Name, email.Factory)
	r.Register(chanify.Name, chanify.Factory)
	r.Register(pushdeer.Name, pushdeer.Factory)
	r.Register(pushover.Name, pushover.Factory)
	r.Register(ntfy.Name, ntfy.Factory)
	r.Register(console.Name, console.Factory)
	r.Register(redis.Name, redis.Factory)
	return r
}

// Register adds or replaces the factory for name. Matching is
// case-insensitive.
func (r *Registry) Register(name string, f channel.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(name)] = f
}

// Lookup returns the factory registered for name.
func (r *Registry) Lookup(name string) (channel.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[normalize(name)]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds one channel per settings entry, in settings order. An
// unknown name fails with UNKNOWN_CHANNEL. On any failure the channels
// already built are closed before the error is returned.
func (r *Registry) Resolve(ctx context.Context, s Settings, deps channel.Deps) ([]channel.Channel, error) {
	built := make([]channel.Channel, 0, len(s))
	for _, entry := range s {
		f, ok := r.Lookup(entry.Name)
		if !ok {
			closeAll(built)
			return nil, nerrors.NewUnknownChannelError(entry.Name)
		}
		cfg := entry.Config
		if cfg == nil {
			cfg = channel.Config{}
		}
		ch, err := f(ctx, cfg, deps)
		if err != nil {
			closeAll(built)
			return nil, err
		}
		deps.Log().Debug("channel resolved", "name", entry.Name, "channel", ch.Name())
		built = append(built, ch)
	}
	return built, nil
}

// FromSettings resolves settings against the default registry, or the one
// given with WithRegistry, and returns a Publisher holding the channels.
func FromSettings(ctx context.Context, s Settings, opts ...Option) (*Publisher, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	reg := o.registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	deps := o.deps
	if deps.Logger == nil {
		deps.Logger = o.logger
	}
	chs, err := reg.Resolve(ctx, s, deps)
	if err != nil {
		return nil, err
	}
	o.channels = append(o.channels, chs...)
	return newPublisher(o), nil
}

func closeAll(chs []channel.Channel) {
	for _, ch := range chs {
		if c, ok := ch.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
