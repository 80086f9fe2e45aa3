package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamhub254/Homeseeker-sub000/internal/config"
)

func TestVerify_NoSecretPasses(t *testing.T) {
	v := NewTurnstileVerifier(&config.Config{})
	ok, err := v.Verify(context.Background(), "anything", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_CallsSiteVerify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(CloudflareResponse{Success: got["response"] == "good"})
	}))
	defer srv.Close()

	v := NewTurnstileVerifier(&config.Config{CloudflareTurnstileSecretKey: "s3cret", CloudflareSiteVerifyURL: srv.URL})

	ok, err := v.Verify(context.Background(), "good", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s3cret", got["secret"])
	assert.Equal(t, "1.2.3.4", got["remoteip"])

	ok, err = v.Verify(context.Background(), "bad", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := NewTurnstileVerifier(&config.Config{CloudflareTurnstileSecretKey: "s", CloudflareSiteVerifyURL: srv.URL})
	ok, err := v.Verify(context.Background(), "t", "")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHumanToken(t *testing.T) {
	v := NewTurnstileVerifier(&config.Config{JwtSecret: "secret"})
	token, err := v.GenerateHumanToken("", "1.2.3.4", "fp", "spa", time.Minute)
	require.NoError(t, err)

	assert.True(t, v.ValidateHumanToken(token, "1.2.3.4", "fp", "spa"))
	assert.False(t, v.ValidateHumanToken(token, "5.6.7.8", "fp", "spa"))
	assert.False(t, v.ValidateHumanToken(token, "1.2.3.4", "other", "spa"))
	assert.False(t, v.ValidateHumanToken("garbage", "1.2.3.4", "fp", "spa"))

	expired, err := v.GenerateHumanToken("", "1.2.3.4", "fp", "spa", -time.Minute)
	require.NoError(t, err)
	assert.False(t, v.ValidateHumanToken(expired, "1.2.3.4", "fp", "spa"))
}
