package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/notifykit/internal/webhook"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

func newServer(t *testing.T, reply string, path *string, body *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path != nil {
			*path = r.URL.Path
		}
		if body != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(body))
		}
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_Post(t *testing.T) {
	var path string
	var body map[string]any
	srv := newServer(t, `{"code":0,"msg":"success"}`, &path, &body)

	ch, err := Factory(context.Background(), channel.Config{
		"token":       "hook-1",
		"base_url":    srv.URL + "/",
		"at_all":      true,
		"at_user_ids": []any{"ou_1"},
	}, channel.Deps{HTTPClient: srv.Client()})
	require.NoError(t, err)
	require.NoError(t, ch.Send(context.Background(), "build failed", ""))

	assert.Equal(t, "/open-apis/bot/v2/hook/hook-1", path)
	want := map[string]any{
		"msg_type": "post",
		"content": map[string]any{
			"post": map[string]any{
				"zh_cn": map[string]any{
					"title": channel.DefaultTitle,
					"content": []any{[]any{
						map[string]any{"tag": "text", "text": "build failed"},
						map[string]any{"tag": "at", "user_id": "all"},
						map[string]any{"tag": "at", "user_id": "ou_1"},
					}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_Signed(t *testing.T) {
	var body map[string]any
	srv := newServer(t, `{"code":0}`, nil, &body)

	ch, err := New(Config{Token: "t", BaseURL: srv.URL, Secret: "s3"}, channel.Deps{HTTPClient: srv.Client()})
	require.NoError(t, err)
	ch.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, ch.Send(context.Background(), "c", "t"))
	assert.Equal(t, "1700000000", body["timestamp"])
	assert.Equal(t, webhook.FeishuSign(1700000000, "s3"), body["sign"])
}

func TestSend_CodeError(t *testing.T) {
	srv := newServer(t, `{"code":19021,"msg":"sign match fail"}`, nil, nil)
	ch, err := New(Config{Token: "t", BaseURL: srv.URL}, channel.Deps{HTTPClient: srv.Client()})
	require.NoError(t, err)

	err = ch.Send(context.Background(), "c", "")
	require.Error(t, err)
	assert.True(t, nerrors.IsDeliveryError(err))
	assert.Contains(t, err.Error(), "19021")
}

func TestURL(t *testing.T) {
	ch, err := New(Config{Token: "t"}, channel.Deps{})
	require.NoError(t, err)
	assert.Equal(t, "https://open.feishu.cn/open-apis/bot/v2/hook/t", ch.URL())
}
