package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"user-api/internal/application/dto"
	domainErrors "user-api/internal/domain/errors"
)

const maxBodyBytes = 1 << 20

// UserService is the set of user operations the HTTP layer exposes
type UserService interface {
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error)
	GetUserByID(ctx context.Context, id string) (*dto.UserResponse, error)
	ReplaceUser(ctx context.Context, id string, req dto.ReplaceUserRequest, expectedVersion *int64) (*dto.UserResponse, error)
	PatchUser(ctx context.Context, id string, req dto.PatchUserRequest, expectedVersion *int64) (*dto.UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*dto.UserResponse, error)
	SearchByBirthDate(ctx context.Context, req dto.BirthDateRangeRequest) ([]*dto.UserResponse, error)
}

// UsersHandler handles requests to the users endpoints
type UsersHandler struct {
	userService UserService
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(userService UserService) *UsersHandler {
	return &UsersHandler{
		userService: userService,
	}
}

func annotate(ctx context.Context, route, operation string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("http.route", route),
		attribute.String("handler", "users"),
		attribute.String("operation", operation),
	)
	span.SetAttributes(attrs...)
}

// Create handles POST /users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	annotate(ctx, "/users", "create")

	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.CreateUser(ctx, req)
	if err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	w.Header().Set("Location", "/users/"+strconv.FormatInt(user.ID, 10))
	writeRecord(ctx, w, user, http.StatusCreated)
}

// Get handles GET /users/{id}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")
	annotate(ctx, "/users/{id}", "get", attribute.String("user.id", idStr))

	user, err := h.userService.GetUserByID(ctx, idStr)
	if err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	writeRecord(ctx, w, user, http.StatusOK)
}

// Replace handles PUT /users/{id}
func (h *UsersHandler) Replace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")
	annotate(ctx, "/users/{id}", "replace", attribute.String("user.id", idStr))

	expected, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	var req dto.ReplaceUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.ReplaceUser(ctx, idStr, req, expected)
	if err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	writeRecord(ctx, w, user, http.StatusOK)
}

// Patch handles PATCH /users/{id}
func (h *UsersHandler) Patch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")
	annotate(ctx, "/users/{id}", "patch", attribute.String("user.id", idStr))

	expected, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	var req dto.PatchUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.PatchUser(ctx, idStr, req, expected)
	if err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	writeRecord(ctx, w, user, http.StatusOK)
}

// Delete handles DELETE /users/{id}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")
	annotate(ctx, "/users/{id}", "delete", attribute.String("user.id", idStr))

	if err := h.userService.DeleteUser(ctx, idStr); err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /users/all. An empty result is answered with 204.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	annotate(ctx, "/users/all", "list")

	users, err := h.userService.ListUsers(ctx)
	if err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	if len(users) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSONResponse(ctx, w, users, http.StatusOK)
}

// Search handles GET /users/searchByDate?startDate=&endDate=
func (h *UsersHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	req := dto.BirthDateRangeRequest{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}
	annotate(ctx, "/users/searchByDate", "search",
		attribute.String("range.start", req.StartDate),
		attribute.String("range.end", req.EndDate),
	)

	users, err := h.userService.SearchByBirthDate(ctx, req)
	if err != nil {
		writeErrorResponseFromDomainError(ctx, w, err)
		return
	}

	writeJSONResponse(ctx, w, users, http.StatusOK)
}

// writeRecord writes a single user with its version as a strong ETag
func writeRecord(ctx context.Context, w http.ResponseWriter, user *dto.UserResponse, statusCode int) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(user.Version, 10)))
	writeJSONResponse(ctx, w, user, statusCode)
}

// decodeJSON decodes the request body into dst, answering 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeErrorResponse(r.Context(), w, "Request body must be a valid JSON object", http.StatusBadRequest, "INVALID_JSON")
		return false
	}
	return true
}

// parseIfMatch reads an optional If-Match header holding a version ETag.
// An absent header or "*" means no expectation.
func parseIfMatch(header string) (*int64, error) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" {
		return nil, nil
	}
	tag := strings.TrimPrefix(header, "W/")
	if unquoted, err := strconv.Unquote(tag); err == nil {
		tag = unquoted
	}
	v, err := strconv.ParseInt(tag, 10, 64)
	if err != nil || v < 1 {
		return nil, domainErrors.ErrInvalidVersion.WithContext("if_match", header)
	}
	return &v, nil
}
