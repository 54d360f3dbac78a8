package chanify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

func TestSend(t *testing.T) {
	tests := []struct {
		name, title, want string
	}{
		{"with title", "Alert", "Alert\nCPU 99%"},
		{"without title", "", "CPU 99%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotText string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				require.NoError(t, r.ParseForm())
				gotText = r.PostForm.Get("text")
			}))
			defer srv.Close()

			ch, err := Factory(context.Background(), channel.Config{"token": "tok", "base_url": srv.URL + "/"}, channel.Deps{HTTPClient: srv.Client()})
			require.NoError(t, err)
			require.NoError(t, ch.Send(context.Background(), "CPU 99%", tt.title))
			assert.Equal(t, "/v1/sender/tok", gotPath)
			assert.Equal(t, tt.want, gotText)
		})
	}
}

func TestSend_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ch, err := New(Config{Token: "tok", BaseURL: srv.URL}, channel.Deps{HTTPClient: srv.Client()})
	require.NoError(t, err)
	err = ch.Send(context.Background(), "c", "t")
	assert.True(t, nerrors.IsDeliveryError(err))
}

func TestURL(t *testing.T) {
	a, _ := New(Config{Token: "t", BaseURL: "https://c.example"}, channel.Deps{})
	b, _ := New(Config{Token: "t", BaseURL: "https://c.example/"}, channel.Deps{})
	assert.Equal(t, "https://c.example/v1/sender/t", a.URL())
	assert.Equal(t, a.URL(), b.URL())

	d, _ := New(Config{Token: "t"}, channel.Deps{})
	assert.Equal(t, "https://api.chanify.net/v1/sender/t", d.URL())

	_, err := Factory(context.Background(), channel.Config{}, channel.Deps{})
	assert.True(t, nerrors.IsConfigError(err))
}
