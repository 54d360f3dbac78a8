package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/notifykit/pkg/channels/bark"
	"github.com/kart-io/notifykit/pkg/channels/dingtalk"
	"github.com/kart-io/notifykit/pkg/channels/wechat"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
	"github.com/kart-io/notifykit/pkg/notify/channel/channeltest"
)

func TestFromSettings_Bark(t *testing.T) {
	p, err := FromSettings(context.Background(), SettingsFromMap(map[string]channel.Config{
		"bark": {"token": "1"},
	}))
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())

	ch, ok := p.Channels()[0].(*bark.Channel)
	require.True(t, ok)
	assert.Equal(t, "1", ch.Config().Token)
}

func TestFromSettings_UnknownChannel(t *testing.T) {
	_, err := FromSettings(context.Background(), Settings{{Name: "unknown_channel", Config: channel.Config{}}})
	require.Error(t, err)
	assert.True(t, nerrors.IsUnknownChannel(err))
	assert.Contains(t, err.Error(), "unknown_channel")
}

func TestFromSettings_ConfigError(t *testing.T) {
	_, err := FromSettings(context.Background(), Settings{{Name: "pushover", Config: channel.Config{"token": "t"}}})
	assert.True(t, nerrors.IsConfigError(err))
}

func TestResolve_CaseInsensitiveAndAliases(t *testing.T) {
	s, err := ParseSettings([]byte(`
WeCom: {token: w}
BARK: {token: b}
ding: {token: d}
`))
	require.NoError(t, err)

	chs, err := DefaultRegistry().Resolve(context.Background(), s, channel.Deps{})
	require.NoError(t, err)
	require.Len(t, chs, 3)
	assert.IsType(t, &wechat.Channel{}, chs[0])
	assert.IsType(t, &bark.Channel{}, chs[1])
	assert.IsType(t, &dingtalk.Channel{}, chs[2])
}

func TestResolve_ClosesBuiltChannelsOnFailure(t *testing.T) {
	built := channeltest.New("first")
	r := NewRegistry()
	r.Register("First", func(context.Context, channel.Config, channel.Deps) (channel.Channel, error) {
		return built, nil
	})
	boom := errors.New("factory failed")
	r.Register("second", func(context.Context, channel.Config, channel.Deps) (channel.Channel, error) {
		return nil, boom
	})

	_, err := r.Resolve(context.Background(), Settings{{Name: "first"}, {Name: "second"}}, channel.Deps{})
	assert.Same(t, boom, err)
	assert.Equal(t, 1, built.Closed())

	built.Reset()
	_, err = r.Resolve(context.Background(), Settings{{Name: "first"}, {Name: "third"}}, channel.Deps{})
	assert.True(t, nerrors.IsUnknownChannel(err))
	assert.Equal(t, 1, built.Closed())
}

func TestFromSettings_CustomRegistry(t *testing.T) {
	mock := channeltest.New("mock")
	var gotCfg channel.Config
	r := NewRegistry()
	r.Register("mock", func(_ context.Context, cfg channel.Config, _ channel.Deps) (channel.Channel, error) {
		gotCfg = cfg
		return mock, nil
	})

	p, err := FromSettings(context.Background(), Settings{{Name: "MOCK"}}, WithRegistry(r))
	require.NoError(t, err)
	assert.NotNil(t, gotCfg)
	require.NoError(t, p.Publish(context.Background(), "hi", ""))
	assert.Equal(t, 1, mock.CallCount())
}

func TestDefaultRegistry_Names(t *testing.T) {
	assert.Equal(t, []string{
		"bark", "chanify", "console", "ding", "dingtalk", "email", "feishu",
		"ntfy", "pushdeer", "pushover", "redis", "wechat", "wecom",
	}, DefaultRegistry().Names())
}
