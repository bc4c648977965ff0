package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamerelay/internal/api/apierr"
	"github.com/mcoot/gamerelay/internal/api/request"
	"github.com/mcoot/gamerelay/internal/api/response"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/services/tokens"
	"github.com/mcoot/gamerelay/internal/services/users"
)

// UserHandler handles login and user administration
type UserHandler struct {
	userManager   *users.Manager
	tokenManager  *tokens.Manager
	loginLifespan time.Duration
}

// NewUserHandler creates a new user handler. Logins issue tokens living loginLifespan.
func NewUserHandler(userManager *users.Manager, tokenManager *tokens.Manager, loginLifespan time.Duration) *UserHandler {
	return &UserHandler{
		userManager:   userManager,
		tokenManager:  tokenManager,
		loginLifespan: loginLifespan,
	}
}

// Login handles POST /login with HTTP Basic credentials
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		WriteError(w, apierr.NewUnauthorizedError("Authorization header missing"))
		return
	}
	username, password, ok := r.BasicAuth()
	if !ok || username == "" {
		WriteError(w, apierr.NewUnauthorizedError("Basic Authorization requires username:password"))
		return
	}

	u, err := h.userManager.Authenticate(username, password)
	if err != nil {
		WriteError(w, err)
		return
	}

	token, err := h.tokenManager.CreateUserToken(u.ID, h.loginLifespan, u.Permissions, "login "+u.Username)
	if err != nil {
		WriteError(w, err)
		return
	}

	perms := []string(token.Permissions)
	if perms == nil {
		perms = []string{}
	}
	response.OK(w, response.LoginResponse{
		Token:       string(token.ID),
		Lifespan:    token.Lifespan.Seconds(),
		Permissions: perms,
		UserID:      string(u.ID),
	})
}

// Create handles POST /user
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateUserRequest
	if err := decodeBody(r, &req, true); err != nil {
		WriteError(w, err)
		return
	}
	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}
	perms, err := request.ParsePermissions(req.Permissions)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	u, err := h.userManager.CreateUser(req.Username, req.Password, req.Email, perms)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.UserFromModel(u))
}

// Get handles GET /user/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.userManager.GetUser(model.UserID(mux.Vars(r)["id"]))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.UserFromModel(u))
}

// Update handles PATCH /user/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := model.UserID(mux.Vars(r)["id"])

	var req request.UpdateUserRequest
	if err := decodeBody(r, &req, true); err != nil {
		WriteError(w, err)
		return
	}

	if _, err := h.userManager.GetUser(id); err != nil {
		WriteError(w, err)
		return
	}

	if req.Password != nil {
		if *req.Password == "" {
			WriteError(w, NewInvalidRequestError("password must not be empty"))
			return
		}
		if err := h.userManager.ChangePassword(id, *req.Password); err != nil {
			WriteError(w, err)
			return
		}
	}
	if req.Email != nil {
		if err := h.userManager.ChangeEmail(id, *req.Email); err != nil {
			WriteError(w, err)
			return
		}
	}
	if req.Permissions != nil {
		perms, err := request.ParsePermissions(req.Permissions)
		if err != nil {
			WriteError(w, NewInvalidRequestError(err.Error()))
			return
		}
		if err := h.userManager.UpdatePermissions(id, perms); err != nil {
			WriteError(w, err)
			return
		}
	}
	if req.Enabled != nil {
		update := h.userManager.Disable
		if *req.Enabled {
			update = h.userManager.Enable
		}
		if err := update(id); err != nil {
			WriteError(w, err)
			return
		}
	}
	if req.Verified != nil {
		if err := h.userManager.SetVerified(id, *req.Verified); err != nil {
			WriteError(w, err)
			return
		}
	}

	u, err := h.userManager.GetUser(id)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.OK(w, response.UserFromModel(u))
}
