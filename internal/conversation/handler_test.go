package conversation

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mijob/internal/apperrors"
	"mijob/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Start(ctx context.Context, account *user.User, req StartRequest) (*StartResponse, error) {
	args := m.Called(ctx, account, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StartResponse), args.Error(1)
}

func (m *mockService) Send(ctx context.Context, senderID, conversationID int, body string) (*Message, error) {
	args := m.Called(ctx, senderID, conversationID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Message), args.Error(1)
}

func (m *mockService) List(ctx context.Context, userID int) ([]Summary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]Summary), args.Error(1)
}

func (m *mockService) Messages(ctx context.Context, userID, conversationID, limit int, beforeID int64) ([]Message, error) {
	args := m.Called(ctx, userID, conversationID, limit, beforeID)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *mockService) MarkRead(ctx context.Context, userID, conversationID int) (int64, error) {
	args := m.Called(ctx, userID, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockService) NotifyPresence(userID int, online bool) {
	m.Called(userID, online)
}

func newRouter(svc Service, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, fakeAccounts{1: individual, 2: worker})
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set("user_id", userID)
		}
	})
	r.POST("/conversations", h.Start)
	r.GET("/conversations/:id/messages", h.Messages)
	r.POST("/conversations/:id/messages", h.Send)
	return r
}

func TestHandler_Start(t *testing.T) {
	tests := []struct {
		name   string
		resp   *StartResponse
		err    error
		status int
	}{
		{"created", &StartResponse{Conversation: &Conversation{ID: 9}, Created: true}, nil, http.StatusCreated},
		{"existing", &StartResponse{Conversation: &Conversation{ID: 9}}, nil, http.StatusOK},
		{"out of tokens", nil, apperrors.InsufficientTokens("Not enough tokens"), http.StatusPaymentRequired},
		{"not a worker", nil, ErrNotWorker, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockService)
			svc.On("Start", mock.Anything, individual, StartRequest{ParticipantID: 2}).Return(tt.resp, tt.err)

			w := httptest.NewRecorder()
			newRouter(svc, 1).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"participant_id":2}`)))

			assert.Equal(t, tt.status, w.Code)
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(new(mockService), 0).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"participant_id":2}`)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandler_Send(t *testing.T) {
	svc := new(mockService)
	svc.On("Send", mock.Anything, 1, 9, "hello").Return(&Message{ID: 3, Body: "hello"}, nil)
	svc.On("Send", mock.Anything, 1, 10, "hello").Return(nil, ErrNotParticipant)

	w := httptest.NewRecorder()
	newRouter(svc, 1).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversations/9/messages", bytes.NewBufferString(`{"body":"hello"}`)))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	newRouter(svc, 1).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversations/10/messages", bytes.NewBufferString(`{"body":"hello"}`)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	newRouter(svc, 1).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversations/9/messages", bytes.NewBufferString(`{"body":""}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Messages(t *testing.T) {
	svc := new(mockService)
	svc.On("Messages", mock.Anything, 1, 9, 20, int64(100)).Return([]Message{{ID: 99}}, nil)

	w := httptest.NewRecorder()
	newRouter(svc, 1).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations/9/messages?limit=20&before=100", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
