package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campusmarket/internal/auth"
	apperrors "campusmarket/internal/errors"
	"campusmarket/internal/model"
	"campusmarket/internal/service"
)

type MockAuthService struct{ mock.Mock }

func (m *MockAuthService) Register(ctx context.Context, name, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, name, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) AdminLogin(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

type MockItemService struct{ mock.Mock }

func (m *MockItemService) Create(ctx context.Context, identity model.Identity, input service.ItemInput) (*model.Item, error) {
	args := m.Called(ctx, identity, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Item), args.Error(1)
}

func (m *MockItemService) Browse(ctx context.Context) ([]service.ItemView, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.ItemView), args.Error(1)
}

func (m *MockItemService) Mine(ctx context.Context, identity model.Identity) ([]service.ItemView, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.ItemView), args.Error(1)
}

func (m *MockItemService) ListAll(ctx context.Context) ([]service.ItemView, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.ItemView), args.Error(1)
}

func (m *MockItemService) Update(ctx context.Context, identity model.Identity, id int64, patch service.ItemPatch) error {
	args := m.Called(ctx, identity, id, patch)
	return args.Error(0)
}

func (m *MockItemService) Delete(ctx context.Context, identity model.Identity, id int64) error {
	args := m.Called(ctx, identity, id)
	return args.Error(0)
}

type MockReportService struct{ mock.Mock }

func (m *MockReportService) Create(ctx context.Context, identity model.Identity, itemID int64, reason string) (*model.Report, error) {
	args := m.Called(ctx, identity, itemID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportService) List(ctx context.Context) ([]model.ReportDetail, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReportDetail), args.Error(1)
}

func (m *MockReportService) Resolve(ctx context.Context, id int64, status string) (*model.Report, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

type MockUserService struct{ mock.Mock }

func (m *MockUserService) Profile(ctx context.Context, identity model.Identity) (model.Identity, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(model.Identity), args.Error(1)
}

func (m *MockUserService) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, id int64, update service.UserUpdate) (*model.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var (
	student = model.Identity{ID: 5, Name: "Owner", Email: "owner@mite.ac.in", Role: model.RoleUser}
	admin   = model.Identity{ID: 1, Name: model.AdminDisplayName, Email: "root@mite.ac.in", Role: model.RoleAdmin}
)

type testServer struct {
	e       *echo.Echo
	tokens  *auth.JWTService
	auth    *MockAuthService
	items   *MockItemService
	reports *MockReportService
	users   *MockUserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := &testServer{
		e:       echo.New(),
		tokens:  auth.NewJWTService("handler-secret"),
		auth:    new(MockAuthService),
		items:   new(MockItemService),
		reports: new(MockReportService),
		users:   new(MockUserService),
	}
	s.e.HTTPErrorHandler = ErrorHandler(logger)
	s.e.Validator = NewValidator()

	gate := auth.NewGate(s.tokens, logger, nil)
	authH := NewAuthHandler(s.auth, s.users)
	itemH := NewItemHandler(s.items)
	reportH := NewReportHandler(s.reports)
	userH := NewUserHandler(s.users)

	api := s.e.Group("/api")
	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/admin/login", authH.AdminLogin)

	secured := api.Group("", gate.Authenticate())
	secured.GET("/auth/me", authH.Me)
	secured.GET("/items/browse", itemH.Browse)
	secured.POST("/items", itemH.Create)
	secured.PUT("/items/:id", itemH.Update)
	secured.DELETE("/items/:id", itemH.Delete)
	secured.POST("/reports", reportH.Create)

	adminG := secured.Group("/admin", gate.RequireAdmin)
	adminG.DELETE("/items/:id", itemH.Delete)
	adminG.PUT("/users/:id", userH.UpdateUser)
	adminG.PUT("/reports/:id", reportH.Resolve)
	return s
}

func (s *testServer) token(t *testing.T, id model.Identity) string {
	t.Helper()
	token, err := s.tokens.Issue(id)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path, token, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *MockAuthService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "institutional email",
			body: `{"name":"Asha","email":"asha@mite.ac.in","password":"pw"}`,
			setup: func(m *MockAuthService) {
				m.On("Register", mock.Anything, "Asha", "asha@mite.ac.in", "pw").Return(&service.AuthResult{
					Token: "t", User: model.Identity{ID: 2, Name: "Asha", Email: "asha@mite.ac.in", Role: model.RoleUser},
				}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "gmail",
			body: `{"name":"Asha","email":"asha@gmail.com","password":"pw"}`,
			setup: func(m *MockAuthService) {
				m.On("Register", mock.Anything, "Asha", "asha@gmail.com", "pw").Return(nil, apperrors.ErrInvalidDomain)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_DOMAIN",
		},
		{
			name:       "missing password",
			body:       `{"name":"Asha","email":"asha@mite.ac.in"}`,
			setup:      func(*MockAuthService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FIELDS",
		},
		{
			name:       "malformed json",
			body:       `{"name":`,
			setup:      func(*MockAuthService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name: "taken",
			body: `{"name":"Asha","email":"asha@mite.ac.in","password":"pw"}`,
			setup: func(m *MockAuthService) {
				m.On("Register", mock.Anything, "Asha", "asha@mite.ac.in", "pw").Return(nil, apperrors.ErrConflict)
			},
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setup(s.auth)

			rec := s.do(http.MethodPost, "/api/auth/register", "", echo.MIMEApplicationJSON, strings.NewReader(tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
				return
			}
			var result service.AuthResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, model.RoleUser, result.User.Role)
		})
	}
}

func TestLoginUpstreamFailureIsGeneric(t *testing.T) {
	s := newTestServer(t)
	s.auth.On("Login", mock.Anything, "a@mite.ac.in", "pw").Return(nil, errors.New("dial tcp 10.0.0.3:3306: i/o timeout"))

	rec := s.do(http.MethodPost, "/api/auth/login", "", echo.MIMEApplicationJSON, strings.NewReader(`{"email":"a@mite.ac.in","password":"pw"}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"INTERNAL_ERROR"}`, rec.Body.String())
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	s.users.On("Profile", mock.Anything, student).Return(student, nil)

	rec := s.do(http.MethodGet, "/api/auth/me", s.token(t, student), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, student, got)

	rec = s.do(http.MethodGet, "/api/auth/me", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteItem(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		caller     model.Identity
		svcErr     error
		wantStatus int
	}{
		{"owner", "/api/items/10", student, nil, http.StatusOK},
		{"non-owner", "/api/items/10", student, apperrors.ErrForbidden, http.StatusForbidden},
		{"missing", "/api/items/10", student, apperrors.ErrNotFound, http.StatusNotFound},
		{"admin route", "/api/admin/items/10", admin, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.items.On("Delete", mock.Anything, tt.caller, int64(10)).Return(tt.svcErr)

			rec := s.do(http.MethodDelete, tt.path, s.token(t, tt.caller), "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			s.items.AssertExpectations(t)
		})
	}
}

func TestAdminRoutesRejectUsers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodDelete, "/api/admin/items/10", s.token(t, student), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
	s.items.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestBadItemID(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodDelete, "/api/items/abc", s.token(t, student), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestCreateItemMultipart(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("title", "Lamp"))
	require.NoError(t, w.WriteField("description", "Desk lamp"))
	require.NoError(t, w.WriteField("price", "150.00"))
	require.NoError(t, w.WriteField("category", "home"))
	part, err := w.CreateFormFile("image", "lamp.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	url := "/uploads/abc.png"
	s.items.On("Create", mock.Anything, student, mock.MatchedBy(func(in service.ItemInput) bool {
		if in.Title != "Lamp" || in.Price != "150.00" || in.Category != "home" || in.Image == nil {
			return false
		}
		data, err := io.ReadAll(in.Image)
		return err == nil && string(data) == "\x89PNG fake"
	})).Return(&model.Item{ID: 44, ImageURL: &url}, nil)

	rec := s.do(http.MethodPost, "/api/items", s.token(t, student), w.FormDataContentType(), &body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":44,"image_url":"/uploads/abc.png"}`, rec.Body.String())
}

func TestCreateItemJSONWithoutImage(t *testing.T) {
	s := newTestServer(t)
	s.items.On("Create", mock.Anything, student, service.ItemInput{
		Title: "Book", Description: "d", Price: "12.5", Category: "books",
	}).Return(&model.Item{ID: 3}, nil)

	rec := s.do(http.MethodPost, "/api/items", s.token(t, student), echo.MIMEApplicationJSON,
		strings.NewReader(`{"title":"Book","description":"d","price":12.5,"category":"books"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":3,"image_url":null}`, rec.Body.String())
}

func TestUpdateItem(t *testing.T) {
	s := newTestServer(t)
	s.items.On("Update", mock.Anything, student, int64(7), service.ItemPatch{Title: "New"}).Return(nil)

	rec := s.do(http.MethodPut, "/api/items/7", s.token(t, student), echo.MIMEApplicationJSON, strings.NewReader(`{"title":"New"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"item updated"}`, rec.Body.String())
}

func TestUpdateItemMultipartImage(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "new.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG new"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	s.items.On("Update", mock.Anything, student, int64(7), mock.MatchedBy(func(p service.ItemPatch) bool {
		if p.Title != "" || p.Price != "" || p.Image == nil {
			return false
		}
		data, err := io.ReadAll(p.Image)
		return err == nil && string(data) == "\x89PNG new"
	})).Return(nil)

	rec := s.do(http.MethodPut, "/api/items/7", s.token(t, student), w.FormDataContentType(), &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"item updated"}`, rec.Body.String())
	s.items.AssertExpectations(t)
}

func TestUpdateItemRejectedImage(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("title", "New"))
	part, err := w.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	s.items.On("Update", mock.Anything, student, int64(7), mock.Anything).Return(apperrors.ErrInvalidImage)

	rec := s.do(http.MethodPut, "/api/items/7", s.token(t, student), w.FormDataContentType(), &body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_IMAGE", decodeError(t, rec).Code)
}

func TestOversizedBodyIsInvalidInput(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logger)
	e.Use(middleware.BodyLimit("1K"))
	e.POST("/items", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(strings.Repeat("x", 4096)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid input: request body too large","code":"INVALID_INPUT"}`, rec.Body.String())
}

func TestCreateReport(t *testing.T) {
	s := newTestServer(t)
	s.reports.On("Create", mock.Anything, student, int64(10), "spam").Return(&model.Report{ID: 8}, nil)

	rec := s.do(http.MethodPost, "/api/reports", s.token(t, student), echo.MIMEApplicationJSON, strings.NewReader(`{"item_id":10,"reason":"spam"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":8}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/reports", s.token(t, student), echo.MIMEApplicationJSON, strings.NewReader(`{"reason":"spam"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "MISSING_FIELDS", body.Code)
	assert.Contains(t, body.Error, "item_id")
}

func TestResolveReportTwice(t *testing.T) {
	s := newTestServer(t)
	s.reports.On("Resolve", mock.Anything, int64(4), "resolved").
		Return(&model.Report{ID: 4, Status: model.ReportStatusResolved}, nil).Twice()

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPut, "/api/admin/reports/4", s.token(t, admin), echo.MIMEApplicationJSON, strings.NewReader(`{"status":"resolved"}`))
		require.Equal(t, http.StatusOK, rec.Code)
		var report model.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, model.ReportStatusResolved, report.Status)
	}

	// each call passes the gate on its own
	rec := s.do(http.MethodPut, "/api/admin/reports/4", s.token(t, student), echo.MIMEApplicationJSON, strings.NewReader(`{"status":"resolved"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	s.reports.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestUpdateUser(t *testing.T) {
	s := newTestServer(t)
	role := "admin"
	s.users.On("Update", mock.Anything, int64(5), service.UserUpdate{Role: &role}).
		Return(&model.User{ID: 5, Name: "Owner", Role: model.RoleAdmin}, nil)

	rec := s.do(http.MethodPut, "/api/admin/users/5", s.token(t, admin), echo.MIMEApplicationJSON, strings.NewReader(`{"role":"admin"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestErrorHandlerEchoErrors(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/nowhere", s.token(t, student), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		db, cache  Pinger
		wantStatus int
		wantBody   string
	}{
		{"all up", stubPinger{}, stubPinger{}, http.StatusOK, `{"status":"ok","db":"up","cache":"up"}`},
		{"cache down", stubPinger{}, stubPinger{errors.New("x")}, http.StatusOK, `{"status":"ok","db":"up","cache":"down"}`},
		{"db down", stubPinger{errors.New("x")}, nil, http.StatusInternalServerError, `{"status":"error","db":"down"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/health", nil), rec)

			require.NoError(t, NewHealthHandler(tt.db, tt.cache).Health(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}
