// Package handler exposes the rbac engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"accessd/internal/rbac/models"
	id "accessd/pkg/domain"
	dErrors "accessd/pkg/domain-errors"
	"accessd/pkg/platform/httputil"
	"accessd/pkg/requestcontext"
)

// Service defines the engine operations the handler exposes.
type Service interface {
	CreateRole(ctx context.Context, name, displayName, description string) (*models.Role, error)
	GetRole(ctx context.Context, roleID id.RoleID) (*models.Role, error)
	ListRoles(ctx context.Context, searchTerm string) ([]*models.Role, error)
	UpdateRoleMetadata(ctx context.Context, roleID id.RoleID, displayName, description *string, expectedVersion int64) (*models.Role, error)
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	GrantPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*models.Role, bool, error)
	RevokePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*models.Role, bool, error)
	TogglePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*models.Role, bool, error)

	ListPermissions(ctx context.Context, category string) []models.Permission
	GetAuditTrail(ctx context.Context, q models.AuditQuery) ([]models.AuditEntry, error)

	HasPermission(ctx context.Context, roleIDs []id.RoleID, permissionName string) bool
	HasAnyRole(ctx context.Context, roleIDs []id.RoleID, roleNames []string) bool
	HasAllRoles(ctx context.Context, roleIDs []id.RoleID, roleNames []string) bool
}

// Handler wires rbac endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an rbac handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the rbac endpoints on the router. Authentication is
// applied by the caller; adminMiddlewares wrap the /admin subtree only, so
// the authorization check endpoint stays reachable for any authenticated
// caller.
func (h *Handler) Register(r chi.Router, adminMiddlewares ...func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminMiddlewares...)
		r.Get("/roles", h.HandleListRoles)
		r.Post("/roles", h.HandleCreateRole)
		r.Get("/roles/{roleID}", h.HandleGetRole)
		r.Patch("/roles/{roleID}", h.HandleUpdateRole)
		r.Delete("/roles/{roleID}", h.HandleDeleteRole)
		r.Put("/roles/{roleID}/permissions/{permissionID}", h.HandleGrant)
		r.Delete("/roles/{roleID}/permissions/{permissionID}", h.HandleRevoke)
		r.Post("/roles/{roleID}/permissions/{permissionID}/toggle", h.HandleToggle)
		r.Get("/permissions", h.HandleListPermissions)
		r.Get("/audit", h.HandleAuditTrail)
	})
	r.Post("/authz/check", h.HandleAuthzCheck)
}

// HandleCreateRole handles POST /admin/roles.
func (h *Handler) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	role, err := h.service.CreateRole(ctx, req.Name, req.DisplayName, req.Description)
	if err != nil {
		h.logError(ctx, "role creation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRole(role))
}

// HandleGetRole handles GET /admin/roles/{roleID}.
func (h *Handler) HandleGetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}

	role, err := h.service.GetRole(ctx, roleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRole(role))
}

// HandleListRoles handles GET /admin/roles?search=.
func (h *Handler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roles, err := h.service.ListRoles(ctx, r.URL.Query().Get("search"))
	if err != nil {
		h.logError(ctx, "role listing failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRoles(roles))
}

// HandleUpdateRole handles PATCH /admin/roles/{roleID}. An optional If-Match
// header carries the expected role version for optimistic concurrency.
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}

	expectedVersion := int64(0)
	if match := r.Header.Get("If-Match"); match != "" {
		v, err := strconv.ParseInt(match, 10, 64)
		if err != nil || v <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "If-Match must be a positive role version"))
			return
		}
		expectedVersion = v
	}

	req, ok := httputil.DecodeAndPrepare[UpdateRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	role, err := h.service.UpdateRoleMetadata(ctx, roleID, req.DisplayName, req.Description, expectedVersion)
	if err != nil {
		h.logError(ctx, "role update failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRole(role))
}

// HandleDeleteRole handles DELETE /admin/roles/{roleID}.
func (h *Handler) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRole(ctx, roleID); err != nil {
		h.logError(ctx, "role deletion failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGrant handles PUT /admin/roles/{roleID}/permissions/{permissionID}.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	h.mutateBinding(w, r, h.service.GrantPermission)
}

// HandleRevoke handles DELETE /admin/roles/{roleID}/permissions/{permissionID}.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	h.mutateBinding(w, r, h.service.RevokePermission)
}

// HandleToggle handles POST /admin/roles/{roleID}/permissions/{permissionID}/toggle.
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleID, permID, ok := h.bindingParams(w, r)
	if !ok {
		return
	}

	role, bound, err := h.service.TogglePermission(ctx, roleID, permID)
	if err != nil {
		h.logError(ctx, "permission toggle failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ToggleResponse{Role: FromRole(role), Bound: bound})
}

func (h *Handler) mutateBinding(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*models.Role, bool, error),
) {
	ctx := r.Context()
	roleID, permID, ok := h.bindingParams(w, r)
	if !ok {
		return
	}

	role, changed, err := op(ctx, roleID, permID)
	if err != nil {
		h.logError(ctx, "binding mutation failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BindingResponse{Role: FromRole(role), Changed: changed})
}

// HandleListPermissions handles GET /admin/permissions?category=.
func (h *Handler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms := h.service.ListPermissions(r.Context(), r.URL.Query().Get("category"))
	httputil.WriteJSON(w, http.StatusOK, FromPermissions(perms))
}

// HandleAuditTrail handles GET /admin/audit?role_id=&from=&to=.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var q models.AuditQuery
	params := r.URL.Query()
	if raw := params.Get("role_id"); raw != "" {
		roleID, err := id.ParseRoleID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "role_id must be a valid UUID"))
			return
		}
		q.RoleID = roleID
	}
	for name, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		if raw := params.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "%s must be an RFC 3339 timestamp", name))
				return
			}
			*dst = t
		}
	}

	entries, err := h.service.GetAuditTrail(ctx, q)
	if err != nil {
		h.logError(ctx, "audit query failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAuditEntries(entries))
}

// HandleAuthzCheck handles POST /authz/check.
func (h *Handler) HandleAuthzCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AuthzCheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	roleIDs := req.ParsedRoleIDs()
	var allowed bool
	switch {
	case req.Permission != "":
		allowed = h.service.HasPermission(ctx, roleIDs, req.Permission)
	case len(req.AnyOfRoles) > 0:
		allowed = h.service.HasAnyRole(ctx, roleIDs, req.AnyOfRoles)
	default:
		allowed = h.service.HasAllRoles(ctx, roleIDs, req.AllOfRoles)
	}
	httputil.WriteJSON(w, http.StatusOK, AuthzCheckResponse{Allowed: allowed})
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (id.RoleID, bool) {
	roleID, err := id.ParseRoleID(chi.URLParam(r, "roleID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "roleID must be a valid UUID"))
		return id.RoleID{}, false
	}
	return roleID, true
}

func (h *Handler) bindingParams(w http.ResponseWriter, r *http.Request) (id.RoleID, id.PermissionID, bool) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return id.RoleID{}, "", false
	}
	permID, err := id.ParsePermissionID(chi.URLParam(r, "permissionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "permissionID is malformed"))
		return id.RoleID{}, "", false
	}
	return roleID, permID, true
}

func (h *Handler) logError(ctx context.Context, msg, requestID string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
}
