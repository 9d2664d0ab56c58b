package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-assistant-go/internal/model"
	"site-assistant-go/internal/moderation"
	"site-assistant-go/internal/service"
)

func newChatRouter(svc service.ChatService) *gin.Engine {
	h := NewChatHandler(svc, "/blocked")
	r := gin.New()
	r.POST("/v1/messages", h.Messages)
	r.POST("/api/v1/unblock", h.Unblock)
	r.GET("/assistant-profile", h.Profile)
	return r
}

func TestChatHandler_ProceedReturnsBackendBody(t *testing.T) {
	svc := &fakeChatService{result: service.ChatResult{
		Decision: moderation.Decision{Outcome: moderation.OutcomeProceed},
		Body:     []byte(`{"content":[{"type":"text","text":"hi"}]}`),
	}}
	r := newChatRouter(svc)

	rec := perform(r, http.MethodPost, "/v1/messages",
		`{"model":"m","system":"ignored","temperature":0.2,"messages":[{"role":"user","content":"website?"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"hi"}]}`, rec.Body.String())
	assert.Equal(t, "203.0.113.7", svc.gotClientID)
	require.Len(t, svc.gotRequest.Messages, 1)
	assert.Equal(t, "website?", svc.gotRequest.Messages[0].Text())
	assert.Contains(t, svc.gotRequest.Extra, "model")
	assert.Contains(t, svc.gotRequest.Extra, "temperature")
	assert.NotContains(t, svc.gotRequest.Extra, "system")
	assert.NotContains(t, svc.gotRequest.Extra, "messages")
}

func TestChatHandler_BlockedReturns403(t *testing.T) {
	svc := &fakeChatService{result: service.ChatResult{Decision: moderation.Decision{Outcome: moderation.OutcomeBlocked}}}
	rec := perform(newChatRouter(svc), http.MethodPost, "/v1/messages", `{"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body model.BlockedChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Chat access is blocked", body.Error)
	assert.True(t, body.BlockChat)
	assert.Equal(t, "/blocked", body.NavigateTo)
	require.Len(t, body.Content, 1)
	assert.Equal(t, service.BlockedAccessMessage, body.Content[0].Text)
}

func TestChatHandler_NewlyBlockedReturns200(t *testing.T) {
	svc := &fakeChatService{result: service.ChatResult{Decision: moderation.Decision{Outcome: moderation.OutcomeNewlyBlocked}}}
	rec := perform(newChatRouter(svc), http.MethodPost, "/v1/messages", `{"messages":[{"role":"user","content":"kiss"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "error")
	assert.Equal(t, true, body["block_chat"])
	assert.Equal(t, "/blocked", body["navigate_to"])
	assert.Contains(t, rec.Body.String(), service.NewlyBlockedMessage)
}

func TestChatHandler_BadRequests(t *testing.T) {
	r := newChatRouter(&fakeChatService{})

	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/v1/messages", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/v1/messages", `{"messages":"hi"}`).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/v1/messages", `{"model":"m"}`).Code)
}

func TestChatHandler_BackendFailureIsGeneric500(t *testing.T) {
	svc := &fakeChatService{err: errors.New("dial tcp: connection refused")}
	rec := perform(newChatRouter(svc), http.MethodPost, "/v1/messages", `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}

func TestChatHandler_Unblock(t *testing.T) {
	svc := &fakeChatService{wasBlocked: true}
	r := newChatRouter(svc)

	rec := perform(r, http.MethodPost, "/api/v1/unblock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Chat has been unblocked successfully."}`, rec.Body.String())
	assert.Equal(t, "203.0.113.7", svc.gotClientID)

	svc.wasBlocked = false
	rec = perform(r, http.MethodPost, "/api/v1/unblock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Chat was not blocked."}`, rec.Body.String())
}

func TestChatHandler_Profile(t *testing.T) {
	rec := perform(newChatRouter(&fakeChatService{}), http.MethodGet, "/assistant-profile", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var persona model.Persona
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &persona))
	assert.Equal(t, "Amanda", persona.Name)
	assert.Equal(t, 3, persona.Rules.MaxOffTopicResponses)
}
