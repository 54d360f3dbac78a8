package wechat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

func newServer(t *testing.T, status int, reply string, body *map[string]any, key *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/webhook/send", r.URL.Path)
		if key != nil {
			*key = r.URL.Query().Get("key")
		}
		if body != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(body))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_Markdown(t *testing.T) {
	var body map[string]any
	var key string
	srv := newServer(t, http.StatusOK, `{"errcode":0,"errmsg":"ok"}`, &body, &key)

	ch, err := Factory(context.Background(), channel.Config{"token": "k1", "base_url": srv.URL + "/"}, channel.Deps{HTTPClient: srv.Client()})
	require.NoError(t, err)
	require.NoError(t, ch.Send(context.Background(), "content", "Deploy"))

	assert.Equal(t, "k1", key)
	want := map[string]any{
		"msgtype":  "markdown",
		"markdown": map[string]any{"content": "## Deploy\n\ncontent"},
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_DefaultTitle(t *testing.T) {
	var body map[string]any
	srv := newServer(t, http.StatusOK, `{"errcode":0}`, &body, nil)

	ch, err := Factory(context.Background(), channel.Config{"token": "k1", "base_url": srv.URL}, channel.Deps{HTTPClient: srv.Client()})
	require.NoError(t, err)
	require.NoError(t, ch.Send(context.Background(), "c", ""))
	assert.Equal(t, "## "+channel.DefaultTitle+"\n\nc", body["markdown"].(map[string]any)["content"])
}

func TestSend_TextWithMentions(t *testing.T) {
	var body map[string]any
	srv := newServer(t, http.StatusOK, `{"errcode":0}`, &body, nil)

	ch, err := Factory(context.Background(), channel.Config{
		"token":                 "k1",
		"base_url":              srv.URL,
		"mentioned_mobile_list": "13800000000,@all",
	}, channel.Deps{HTTPClient: srv.Client()})
	require.NoError(t, err)
	require.NoError(t, ch.Send(context.Background(), "c", "t"))

	want := map[string]any{
		"msgtype": "text",
		"text": map[string]any{
			"content":               "t\nc",
			"mentioned_mobile_list": []any{"13800000000", "@all"},
		},
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_Failures(t *testing.T) {
	t.Run("errcode", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, `{"errcode":93000,"errmsg":"invalid webhook url"}`, nil, nil)
		ch, err := Factory(context.Background(), channel.Config{"token": "k", "base_url": srv.URL}, channel.Deps{HTTPClient: srv.Client()})
		require.NoError(t, err)
		err = ch.Send(context.Background(), "c", "")
		assert.True(t, nerrors.IsDeliveryError(err))
	})

	t.Run("status", func(t *testing.T) {
		srv := newServer(t, http.StatusNotFound, ``, nil, nil)
		ch, err := Factory(context.Background(), channel.Config{"token": "k", "base_url": srv.URL}, channel.Deps{HTTPClient: srv.Client()})
		require.NoError(t, err)
		err = ch.Send(context.Background(), "c", "")
		assert.True(t, nerrors.IsDeliveryError(err))
	})
}

func TestURL(t *testing.T) {
	ch, err := New(Config{Token: "a b"}, channel.Deps{})
	require.NoError(t, err)
	assert.Equal(t, "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=a+b", ch.URL())

	_, err = New(Config{}, channel.Deps{})
	assert.True(t, nerrors.IsConfigError(err))
}
