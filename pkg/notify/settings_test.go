package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

func TestParseSettings_PreservesOrder(t *testing.T) {
	s, err := ParseSettings([]byte(`
ntfy:
  topic: alerts
  priority: 4
bark:
  token: abc
console:
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"ntfy", "bark", "console"}, s.Names())
	assert.Equal(t, 4, s[0].Config["priority"])
	assert.Equal(t, channel.Config{}, s[2].Config)
}

func TestParseSettings_JSON(t *testing.T) {
	s, err := ParseSettings([]byte(`{"wechat": {"token": "w"}, "email": {"port": 465, "to_emails": ["a@b.c"]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"wechat", "email"}, s.Names())
	emails, ok := s[1].Config.Strings("to_emails")
	require.True(t, ok)
	assert.Equal(t, []string{"a@b.c"}, emails)
}

func TestParseSettings_Invalid(t *testing.T) {
	_, err := ParseSettings([]byte(`- bark`))
	require.Error(t, err)
	assert.ErrorIs(t, err, nerrors.ErrInvalidSettings)

	_, err = ParseSettings([]byte(`bark: token`))
	assert.ErrorIs(t, err, nerrors.ErrInvalidSettings)
}

func TestSettings_Embedded(t *testing.T) {
	var doc struct {
		Channels Settings `yaml:"channels"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("channels:\n  feishu: {token: f}\n  bark: {token: b}\n"), &doc))
	assert.Equal(t, []string{"feishu", "bark"}, doc.Channels.Names())
}

func TestSettingsFromMap(t *testing.T) {
	s := SettingsFromMap(map[string]channel.Config{
		"wechat": {"token": "w"},
		"bark":   {"token": "b"},
	})
	assert.Equal(t, []string{"bark", "wechat"}, s.Names())
}
