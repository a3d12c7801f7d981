package web

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
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ngaotu/misa-crm-backend/internal/config"
	"github.com/ngaotu/misa-crm-backend/internal/core"
	"github.com/ngaotu/misa-crm-backend/internal/customers"
)

type mockCustomers struct {
	mock.Mock
}

func (m *mockCustomers) GetAll(ctx context.Context) ([]customers.Customer, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]customers.Customer)
	return list, args.Error(1)
}

func (m *mockCustomers) GetByID(ctx context.Context, id uuid.UUID) (*customers.Customer, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*customers.Customer)
	return rec, args.Error(1)
}

func (m *mockCustomers) Paged(ctx context.Context, req core.PagedRequest) (core.PagedResult[customers.Customer], error) {
	args := m.Called(ctx, req)
	return args.Get(0).(core.PagedResult[customers.Customer]), args.Error(1)
}

func (m *mockCustomers) Insert(ctx context.Context, rec *customers.Customer) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCustomers) Update(ctx context.Context, id uuid.UUID, rec *customers.Customer) (int64, error) {
	args := m.Called(ctx, id, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCustomers) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCustomers) GenerateCode(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockCustomers) AssignCustomerType(ctx context.Context, ids []uuid.UUID, customerType *string) (int64, error) {
	args := m.Called(ctx, ids, customerType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCustomers) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCustomers) ExistsByEmail(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCustomers) ExistsByPhone(ctx context.Context, phone string, excludeID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, phone, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCustomers) ImportCSV(ctx context.Context, r io.Reader, fileName string) (*customers.ImportResult, error) {
	args := m.Called(ctx, r, fileName)
	res, _ := args.Get(0).(*customers.ImportResult)
	return res, args.Error(1)
}

func (m *mockCustomers) ExportCSV(ctx context.Context, ids []uuid.UUID, w io.Writer) error {
	args := m.Called(ctx, ids, w)
	return args.Error(0)
}

func (m *mockCustomers) ExportFileName() string {
	return m.Called().String(0)
}

type stubReady struct{ err error }

func (s stubReady) CheckReady(context.Context) error { return s.err }

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import:  config.ImportConfig{MaxFileSize: 10 << 20, Timeout: time.Minute},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T) (*Server, *mockCustomers) {
	t.Helper()
	m := &mockCustomers{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return NewServer(m, stubReady{}, testConfig()), m
}

func do(s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
	Error *ErrorBody      `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/readyz", nil).Code)

	down := NewServer(&mockCustomers{}, stubReady{err: errors.New("database unavailable")}, testConfig())
	rec := do(down, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database unavailable", decode(t, rec).Error.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	do(s, http.MethodGet, "/healthz", nil)

	rec := do(s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crm_http_requests_total")
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantMsg    string
		wantField  string
	}{
		{"validation", core.Validation("CustomerEmail", "Email không đúng định dạng"), http.StatusBadRequest, "Validation", "Email không đúng định dạng", "CustomerEmail"},
		{"conflict", core.Conflict("CustomerPhone", "Số điện thoại khách hàng đã tồn tại trong hệ thống"), http.StatusConflict, "Conflict", "Số điện thoại khách hàng đã tồn tại trong hệ thống", "CustomerPhone"},
		{"not found", core.NotFound(core.MsgNotFound), http.StatusNotFound, "NotFound", core.MsgNotFound, ""},
		{"system hides detail", errors.New("pq: relation \"customer\" does not exist"), http.StatusInternalServerError, "ServerError", core.MsgSystem, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestServer(t)
			m.On("Insert", mock.Anything, mock.Anything).Return(int64(0), tt.err)

			rec := do(s, http.MethodPost, "/api/customers", strings.NewReader(`{"customerFullName":"A"}`))
			require.Equal(t, tt.wantStatus, rec.Code)

			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantStatus, env.Error.Code)
			assert.Equal(t, tt.wantType, env.Error.Type)
			assert.Equal(t, tt.wantMsg, env.Error.Message)
			assert.Equal(t, tt.wantField, env.Error.Field)
			assert.NotEmpty(t, env.Error.SupportCode)
			assert.Equal(t, "null", string(env.Data))
		})
	}
}

func TestCreateCustomer(t *testing.T) {
	s, m := newTestServer(t)
	m.On("Insert", mock.Anything, mock.MatchedBy(func(c *customers.Customer) bool {
		return c.CustomerFullName == "Nguyễn Văn A" && *c.CustomerEmail == "a@misa.vn"
	})).Return(int64(1), nil)

	rec := do(s, http.MethodPost, "/api/customers",
		strings.NewReader(`{"customerFullName":"Nguyễn Văn A","customerEmail":"a@misa.vn"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", string(decode(t, rec).Data))
}

func TestCreateCustomer_BadJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodPost, "/api/customers", strings.NewReader(`{`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidBody, decode(t, rec).Error.Message)
}

func TestGetCustomer(t *testing.T) {
	id := uuid.New()
	s, m := newTestServer(t)
	m.On("GetByID", mock.Anything, id).Return(&customers.Customer{CustomerID: id, CustomerCode: "KH202411000001"}, nil)

	rec := do(s, http.MethodGet, "/api/customers/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got customers.Customer
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, "KH202411000001", got.CustomerCode)

	bad := do(s, http.MethodGet, "/api/customers/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, msgInvalidID, decode(t, bad).Error.Message)
}

func TestUpdateAndDeleteCustomer(t *testing.T) {
	id := uuid.New()
	s, m := newTestServer(t)
	m.On("Update", mock.Anything, id, mock.Anything).Return(int64(1), nil)
	m.On("Delete", mock.Anything, id).Return(int64(0), core.NotFound(core.MsgNotFound))

	rec := do(s, http.MethodPut, "/api/customers/"+id.String(), strings.NewReader(`{"customerFullName":"B"}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodDelete, "/api/customers/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndGenerateCode(t *testing.T) {
	s, m := newTestServer(t)
	m.On("GetAll", mock.Anything).Return([]customers.Customer{{CustomerCode: "KH1"}, {CustomerCode: "KH2"}}, nil)
	m.On("GenerateCode", mock.Anything).Return("KH202411000003", nil)

	rec := do(s, http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []customers.Customer
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	assert.Len(t, list, 2)

	rec = do(s, http.MethodGet, "/api/customers/generate-code", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"KH202411000003"`, string(decode(t, rec).Data))
}

func TestPagedCustomers(t *testing.T) {
	s, m := newTestServer(t)
	want := core.PagedRequest{Search: "an", Page: 2, PageSize: 5, SortBy: "customerFullName", SortDirection: "asc"}
	m.On("Paged", mock.Anything, want).Return(core.PagedResult[customers.Customer]{
		Items:        []customers.Customer{{CustomerCode: "KH1"}},
		TotalRecords: 6,
		CurrentPage:  2,
		PageSize:     5,
	}, nil)

	rec := do(s, http.MethodGet, "/api/customers/paging?search=an&page=2&pageSize=5&sortBy=customerFullName&sortDirection=asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var meta PageMeta
	require.NoError(t, json.Unmarshal(decode(t, rec).Meta, &meta))
	assert.Equal(t, PageMeta{Page: 2, PageSize: 5, Total: 6, TotalPages: 2}, meta)
}

func TestPagedCustomers_Defaults(t *testing.T) {
	s, m := newTestServer(t)
	m.On("Paged", mock.Anything, core.PagedRequest{Page: 1, PageSize: core.DefaultPageSize}).
		Return(core.PagedResult[customers.Customer]{Items: []customers.Customer{}, CurrentPage: 1, PageSize: 10}, nil)

	rec := do(s, http.MethodGet, "/api/customers/paging?page=abc", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckDuplicate(t *testing.T) {
	exclude := uuid.New()

	t.Run("email found", func(t *testing.T) {
		s, m := newTestServer(t)
		m.On("ExistsByEmail", mock.Anything, "a@misa.vn", (*uuid.UUID)(nil)).Return(true, nil)

		rec := do(s, http.MethodGet, "/api/customers/check-duplicate/email?email=a@misa.vn", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", string(decode(t, rec).Data))
	})

	t.Run("phone with exclude id", func(t *testing.T) {
		s, m := newTestServer(t)
		m.On("ExistsByPhone", mock.Anything, "0901234567", &exclude).Return(false, nil)

		rec := do(s, http.MethodGet, "/api/customers/check-duplicate/phone?phone=0901234567&excludeId="+exclude.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "false", string(decode(t, rec).Data))
	})

	tests := []struct {
		target string
		want   string
	}{
		{"/api/customers/check-duplicate/email?email=%20", msgMissingEmail},
		{"/api/customers/check-duplicate/phone", msgMissingPhone},
		{"/api/customers/check-duplicate/email?email=a@misa.vn&excludeId=zzz", msgInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := do(s, http.MethodGet, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode(t, rec).Error.Message)
		})
	}
}

func TestBulkAssignTypeAndDelete(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	s, m := newTestServer(t)
	m.On("AssignCustomerType", mock.Anything, ids, mock.MatchedBy(func(t *string) bool {
		return t != nil && *t == "VIP"
	})).Return(int64(2), nil)
	m.On("BulkDelete", mock.Anything, ids).Return(int64(2), nil)

	body, _ := json.Marshal(BulkAssignTypeRequest{CustomerIDs: ids, CustomerType: ptr("VIP")})
	rec := do(s, http.MethodPost, "/api/customers/bulk-assign-type", bytes.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", string(decode(t, rec).Data))

	body, _ = json.Marshal(ids)
	rec = do(s, http.MethodPost, "/api/customers/bulk-delete", bytes.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", string(decode(t, rec).Data))
}

func TestExport(t *testing.T) {
	ids := []uuid.UUID{uuid.New()}
	s, m := newTestServer(t)
	m.On("ExportCSV", mock.Anything, ids, mock.Anything).
		Run(func(args mock.Arguments) {
			_ = customers.WriteCSV(args.Get(2).(io.Writer), []customers.Customer{{CustomerCode: "KH1", CustomerFullName: "A"}})
		}).
		Return(nil)
	m.On("ExportFileName").Return("MISA_CRM_Customers_20241116_083005.csv")

	body, _ := json.Marshal(ids)
	rec := do(s, http.MethodPost, "/api/customers/export", bytes.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="MISA_CRM_Customers_20241116_083005.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, rec.Body.String(), "KH1,A")
}

func TestExport_StoreFailure(t *testing.T) {
	s, m := newTestServer(t)
	m.On("ExportCSV", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	rec := do(s, http.MethodPost, "/api/customers/export", strings.NewReader(`[]`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DB001", decode(t, rec).Error.SupportCode)
}

// multipartBody builds a form with one file field.
func multipartBody(t *testing.T, field, name, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doImport(s *Server, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/customers/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestImport_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		file    string
		content string
		want    string
	}{
		{"wrong field", "upload", "a.csv", "x", msgMissingFile},
		{"empty file", "file", "a.csv", "", msgMissingFile},
		{"not csv", "file", "a.xlsx", "x", msgNotCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			body, ct := multipartBody(t, tt.field, tt.file, tt.content)
			rec := doImport(s, body, ct)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode(t, rec).Error.Message)
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		s, _ := newTestServer(t)
		rec := doImport(s, strings.NewReader("{}"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgMissingFile, decode(t, rec).Error.Message)
	})

	t.Run("too large", func(t *testing.T) {
		cfg := testConfig()
		cfg.Import.MaxFileSize = 4
		s := NewServer(&mockCustomers{}, nil, cfg)
		body, ct := multipartBody(t, "file", "a.csv", "0123456789")
		rec := doImport(s, body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Kích thước file không được vượt quá 0MB", decode(t, rec).Error.Message)
	})
}

func TestImport_Success(t *testing.T) {
	s, m := newTestServer(t)
	m.On("ImportCSV", mock.Anything, mock.Anything, "khach.CSV").
		Return(&customers.ImportResult{TotalRows: 2, SuccessCount: 2, Errors: []customers.ImportError{}}, nil)

	body, ct := multipartBody(t, "file", "khach.CSV", "Họ và tên\nA\nB\n")
	rec := doImport(s, body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode(t, rec)
	assert.Nil(t, env.Error)
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.EqualValues(t, 2, data["successCount"])
}

func TestImport_PartialSuccessWarning(t *testing.T) {
	s, m := newTestServer(t)
	result := &customers.ImportResult{
		TotalRows:    3,
		SuccessCount: 2,
		ErrorCount:   1,
		Errors:       []customers.ImportError{{RowNumber: 3, ErrorMessage: "Email không đúng định dạng"}},
	}
	m.On("ImportCSV", mock.Anything, mock.Anything, "a.csv").Return(result, nil)

	body, ct := multipartBody(t, "file", "a.csv", "Họ và tên\nA\n")
	rec := doImport(s, body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Import hoàn tất với 1 lỗi. "+result.Summary(), env.Error.Message)
}

func TestImport_LimiterFull(t *testing.T) {
	s, m := newTestServer(t)
	m.On("ImportCSV", mock.Anything, mock.Anything, "a.csv").Return(nil, core.ErrTooManyImports)

	body, ct := multipartBody(t, "file", "a.csv", "x\n")
	rec := doImport(s, body, ct)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "IMP001", decode(t, rec).Error.SupportCode)
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestWithClient(t *testing.T) {
	var ip, ua string
	h := withClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = core.ClientIP(r.Context())
		ua = core.UserAgent(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("User-Agent", "crm-test")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", ip)
	assert.Equal(t, "crm-test", ua)
}

func TestResponseConstructors(t *testing.T) {
	assert.Nil(t, OK(1, nil).Error)
	assert.Nil(t, Created(1).Meta)
	assert.Nil(t, Warning(1, nil, "").Error)
	assert.Equal(t, "w", Warning(1, nil, "w").Error.Message)

	f := Fail("bad", nil)
	assert.Nil(t, f.Data)
	assert.Equal(t, "bad", f.Error.Message)
}

func ptr(s string) *string { return &s }

func TestImport_StoppedByDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.Import.Timeout = time.Nanosecond
	m := &mockCustomers{}
	s := NewServer(m, nil, cfg)

	partial := &customers.ImportResult{TotalRows: 1, SuccessCount: 1, Errors: []customers.ImportError{}}
	m.On("ImportCSV", mock.Anything, mock.Anything, "a.csv").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(partial, context.DeadlineExceeded)

	body, ct := multipartBody(t, "file", "a.csv", "x\n")
	rec := doImport(s, body, ct)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "Import bị dừng sau 1 dòng. "+partial.Summary(), decode(t, rec).Error.Message)
}
