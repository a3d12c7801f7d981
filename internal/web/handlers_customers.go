package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ngaotu/misa-crm-backend/internal/core"
	"github.com/ngaotu/misa-crm-backend/internal/customers"
	"github.com/ngaotu/misa-crm-backend/internal/logging"
)

// Request-level messages shown to the caller.
const (
	msgInvalidID      = "Id không hợp lệ"
	msgInvalidBody    = "Dữ liệu gửi lên không hợp lệ"
	msgMissingFile    = "Vui lòng chọn file CSV"
	msgNotCSV         = "Chỉ chấp nhận file CSV"
	msgMissingEmail   = "Vui lòng cung cấp email để kiểm tra"
	msgMissingPhone   = "Vui lòng cung cấp số điện thoại để kiểm tra"
	multipartMemLimit = 8 << 20
)

// BulkAssignTypeRequest is the body of POST /api/customers/bulk-assign-type.
type BulkAssignTypeRequest struct {
	CustomerIDs  []uuid.UUID `json:"customerIds"`
	CustomerType *string     `json:"customerType"`
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := s.customers.GetAll(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(list, nil))
}

func (s *Server) handlePagedCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := core.PagedRequest{
		Search:        q.Get("search"),
		Page:          parseIntParam(r, "page", 1),
		PageSize:      parseIntParam(r, "pageSize", core.DefaultPageSize),
		SortBy:        q.Get("sortBy"),
		SortDirection: q.Get("sortDirection"),
	}

	result, err := s.customers.Paged(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(result.Items, PageMeta{
		Page:       result.CurrentPage,
		PageSize:   result.PageSize,
		Total:      result.TotalRecords,
		TotalPages: result.TotalPages(),
	}))
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.customers.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(rec, nil))
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var rec customers.Customer
	if !decodeBody(w, r, &rec) {
		return
	}
	n, err := s.customers.Insert(r.Context(), &rec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Created(n))
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var rec customers.Customer
	if !decodeBody(w, r, &rec) {
		return
	}
	n, err := s.customers.Update(r.Context(), id, &rec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(n, nil))
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := s.customers.Delete(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(n, nil))
}

func (s *Server) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.customers.GenerateCode(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(code, nil))
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	s.checkDuplicate(w, r, "email", msgMissingEmail, s.customers.ExistsByEmail)
}

func (s *Server) handleCheckPhone(w http.ResponseWriter, r *http.Request) {
	s.checkDuplicate(w, r, "phone", msgMissingPhone, s.customers.ExistsByPhone)
}

func (s *Server) checkDuplicate(w http.ResponseWriter, r *http.Request, param, missing string,
	exists func(context.Context, string, *uuid.UUID) (bool, error)) {
	value := r.URL.Query().Get(param)
	if strings.TrimSpace(value) == "" {
		writeFail(w, http.StatusBadRequest, missing)
		return
	}

	var excludeID *uuid.UUID
	if raw := r.URL.Query().Get("excludeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeFail(w, http.StatusBadRequest, msgInvalidID)
			return
		}
		excludeID = &id
	}

	found, err := exists(r.Context(), value, excludeID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(found, nil))
}

func (s *Server) handleBulkAssignType(w http.ResponseWriter, r *http.Request) {
	var req BulkAssignTypeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := s.customers.AssignCustomerType(r.Context(), req.CustomerIDs, req.CustomerType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(n, nil))
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var ids []uuid.UUID
	if !decodeBody(w, r, &ids) {
		return
	}
	n, err := s.customers.BulkDelete(r.Context(), ids)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OK(n, nil))
}

// handleExport renders the whole file before sending any header so a store
// failure still produces a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var ids []uuid.UUID
	if !decodeBody(w, r, &ids) {
		return
	}

	var buf bytes.Buffer
	if err := s.customers.ExportCSV(r.Context(), ids, &buf); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.customers.ExportFileName()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	tooLarge := fmt.Sprintf("Kích thước file không được vượt quá %dMB", maxSize>>20)

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(multipartMemLimit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeFail(w, http.StatusBadRequest, tooLarge)
			return
		}
		writeFail(w, http.StatusBadRequest, msgMissingFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFail(w, http.StatusBadRequest, msgMissingFile)
		return
	}
	defer file.Close()

	switch {
	case header.Size == 0:
		writeFail(w, http.StatusBadRequest, msgMissingFile)
		return
	case !strings.EqualFold(filepath.Ext(header.Filename), ".csv"):
		writeFail(w, http.StatusBadRequest, msgNotCSV)
		return
	case header.Size > maxSize:
		writeFail(w, http.StatusBadRequest, tooLarge)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	result, err := s.customers.ImportCSV(ctx, file, header.Filename)
	if err != nil && result != nil && ctx.Err() != nil {
		// Rows before the deadline are already stored; report them.
		logging.FromContext(r.Context()).Warn("import stopped early", "file", header.Filename, "error", err)
		msg := fmt.Sprintf("Import bị dừng sau %d dòng. %s", result.TotalRows, result.Summary())
		writeJSON(w, http.StatusGatewayTimeout, Warning(result, nil, msg))
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if result.ErrorCount > 0 {
		msg := fmt.Sprintf("Import hoàn tất với %d lỗi. %s", result.ErrorCount, result.Summary())
		writeJSON(w, http.StatusOK, Warning(result, nil, msg))
		return
	}
	writeJSON(w, http.StatusOK, OK(result, nil))
}

// pathID parses the {id} URL parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeFail(w, http.StatusBadRequest, msgInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes a JSON body into v, writing a 400 when it is malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFail(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

// parseIntParam parses an integer query parameter with a default value.
// Out-of-range values are left for PagedRequest.Normalize to clamp.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
