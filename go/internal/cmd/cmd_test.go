package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mcdev12/musiguessr/go/internal/auth"
	"github.com/mcdev12/musiguessr/go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestDescribeToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "unknown user, no expiry", describeToken(auth.Token{Token: "opaque"}, now))

	live := auth.Token{Token: signedToken(t, now.Add(time.Hour)), Username: "ana"}
	assert.Equal(t, "ana, expires 2024-05-01T13:00:00Z", describeToken(live, now))

	dead := auth.Token{Token: signedToken(t, now.Add(-time.Hour)), Username: "ana"}
	assert.Equal(t, "ana, expired 2024-05-01T11:00:00Z", describeToken(dead, now))
}

func newPlayContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("play", flag.ContinueOnError)
	for _, f := range newPlayCommand().Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestStartRequest(t *testing.T) {
	req, err := startRequest(newPlayContext(t))
	require.NoError(t, err)
	assert.Nil(t, req.SessionID)
	assert.Nil(t, req.PlaylistID)

	req, err = startRequest(newPlayContext(t, "--session", "77", "--playlist", "3"))
	require.NoError(t, err)
	require.NotNil(t, req.SessionID)
	require.NotNil(t, req.PlaylistID)
	assert.Equal(t, int64(77), *req.SessionID)
	assert.Equal(t, int64(3), *req.PlaylistID)

	_, err = startRequest(newPlayContext(t, "--playlist", "0"))
	assert.Error(t, err)
}

func TestGatewayConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Game.RoundSeconds = 15
	cfg.Game.FinishTimeout = 3 * time.Second
	cfg.Gateway.AllowedOrigins = []string{"http://app.example"}
	cfg.Gateway.PongTimeout = 40 * time.Second

	gw := gatewayConfig(&cfg)
	assert.Equal(t, 15, gw.RoundSeconds)
	assert.Equal(t, 10, gw.SearchLimit)
	assert.Equal(t, 3*time.Second, gw.FinishTimeout)
	assert.Equal(t, []string{"http://app.example"}, gw.AllowedOrigins)
	assert.Equal(t, 40*time.Second, gw.ConnectionConfig.ReadTimeout)
	assert.Equal(t, 54*time.Second, gw.ConnectionConfig.PingInterval)
	require.NotNil(t, gw.ConnectionConfig.CheckOrigin)
}

func TestNewAPIClient_Headers(t *testing.T) {
	type seen struct{ agent, auth string }
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- seen{agent: r.Header.Get("User-Agent"), auth: r.Header.Get("Authorization")}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := config.APIConfig{BaseURL: srv.URL, Timeout: time.Second}

	_, err := newAPIClient(cfg, "service-token").ListMusics(context.Background())
	require.NoError(t, err)
	h := <-got
	assert.Equal(t, userAgent, h.agent)
	assert.Equal(t, "Bearer service-token", h.auth)

	_, err = newAPIClient(cfg, "").ListMusics(context.Background())
	require.NoError(t, err)
	h = <-got
	assert.Equal(t, userAgent, h.agent)
	assert.Empty(t, h.auth)
}
