package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"

	"site-assistant-go/internal/model"
	"site-assistant-go/internal/moderation"
	"site-assistant-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChatService struct {
	result     service.ChatResult
	err        error
	wasBlocked bool
	unblockErr error

	gotClientID string
	gotRequest  service.ChatRequest
}

func (f *fakeChatService) Handle(_ context.Context, clientID string, req service.ChatRequest) (service.ChatResult, error) {
	f.gotClientID = clientID
	f.gotRequest = req
	if f.err != nil {
		return service.ChatResult{}, f.err
	}
	if len(req.Messages) == 0 {
		return service.ChatResult{}, service.ErrEmptyConversation
	}
	return f.result, nil
}

func (f *fakeChatService) Unblock(_ context.Context, clientID string) (bool, error) {
	f.gotClientID = clientID
	return f.wasBlocked, f.unblockErr
}

func (f *fakeChatService) Persona() model.Persona {
	return model.Persona{Name: "Amanda", Rules: model.PersonaRules{MaxOffTopicResponses: moderation.DefaultBlockThreshold}}
}

type fakeLeadService struct {
	submitErr error
	listErr   error
	leads     []model.Lead

	strict   []model.Lead
	lenient  []model.Lead
	incoming []model.IncomingMessage
}

func (f *fakeLeadService) SubmitStrict(_ context.Context, lead model.Lead) error {
	f.strict = append(f.strict, lead)
	if lead == nil {
		return service.ErrEmptyLead
	}
	if missing := lead.MissingFields(service.RequiredLeadFields); len(missing) > 0 {
		return &service.ValidationError{Missing: missing}
	}
	return f.submitErr
}

func (f *fakeLeadService) SubmitLenient(_ context.Context, lead model.Lead) error {
	f.lenient = append(f.lenient, lead)
	if len(lead) == 0 {
		return service.ErrEmptyLead
	}
	return f.submitErr
}

func (f *fakeLeadService) List(context.Context) ([]model.Lead, error) {
	return f.leads, f.listErr
}

func (f *fakeLeadService) HandleIncomingMessage(_ context.Context, msg model.IncomingMessage) error {
	f.incoming = append(f.incoming, msg)
	return f.submitErr
}

func perform(r http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	req.RemoteAddr = "203.0.113.7:51000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
