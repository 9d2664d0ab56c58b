package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-assistant-go/internal/config"
	"site-assistant-go/pkg/whatsapp"
)

const inboundPayload = `{"entry":[{"changes":[{"value":{"messages":[{"from":"201000494040","text":{"body":"I need a website"}}]}}]}]}`

func newWebhookRouter(svc *fakeLeadService, cfg config.WhatsAppConfig) *gin.Engine {
	h := NewWebhookHandler(svc, cfg)
	r := gin.New()
	r.GET("/api/v1/whatsapp-webhook", h.Verify)
	r.POST("/api/v1/whatsapp-webhook", h.Receive)
	return r
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_Verify(t *testing.T) {
	r := newWebhookRouter(&fakeLeadService{}, config.WhatsAppConfig{VerifyToken: "amanda3alafekra"})

	rec := perform(r, http.MethodGet, "/api/v1/whatsapp-webhook?hub.mode=subscribe&hub.verify_token=amanda3alafekra&hub.challenge=12345", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	rec = perform(r, http.MethodGet, "/api/v1/whatsapp-webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = perform(r, http.MethodGet, "/api/v1/whatsapp-webhook?hub.mode=unsubscribe&hub.verify_token=amanda3alafekra", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookHandler_ReceiveForwardsFirstMessage(t *testing.T) {
	svc := &fakeLeadService{}
	rec := perform(newWebhookRouter(svc, config.WhatsAppConfig{}), http.MethodPost, "/api/v1/whatsapp-webhook", inboundPayload)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	require.Len(t, svc.incoming, 1)
	assert.Equal(t, "201000494040", svc.incoming[0].From)
	assert.Equal(t, "I need a website", svc.incoming[0].Text)
}

func TestWebhookHandler_ReceiveAlwaysAcknowledges(t *testing.T) {
	svc := &fakeLeadService{submitErr: errors.New("disk full")}
	r := newWebhookRouter(svc, config.WhatsAppConfig{})

	for _, body := range []string{inboundPayload, `{"entry":[]}`, `garbage`} {
		rec := perform(r, http.MethodPost, "/api/v1/whatsapp-webhook", body)
		assert.Equal(t, http.StatusOK, rec.Code, body)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	}
	assert.Len(t, svc.incoming, 1)
}

func TestWebhookHandler_SignatureChecked(t *testing.T) {
	svc := &fakeLeadService{}
	r := newWebhookRouter(svc, config.WhatsAppConfig{AppSecret: "s3cret"})

	rec := perform(r, http.MethodPost, "/api/v1/whatsapp-webhook", inboundPayload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.incoming, "unsigned payload dropped")

	rec = perform(r, http.MethodPost, "/api/v1/whatsapp-webhook", inboundPayload, whatsapp.SignatureHeader, sign("other", inboundPayload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.incoming, "bad signature dropped")

	rec = perform(r, http.MethodPost, "/api/v1/whatsapp-webhook", inboundPayload, whatsapp.SignatureHeader, sign("s3cret", inboundPayload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.incoming, 1)
}
