package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamerelay/internal/api/request"
	"github.com/mcoot/gamerelay/internal/api/response"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/services/tokens"
)

// TokenHandler handles token administration on the internal listener
type TokenHandler struct {
	tokenManager *tokens.Manager
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(tokenManager *tokens.Manager) *TokenHandler {
	return &TokenHandler{tokenManager: tokenManager}
}

// Create handles POST /token
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTokenRequest
	if err := decodeBody(r, &req, true); err != nil {
		WriteError(w, err)
		return
	}

	lifespan, err := request.ParseLifespan(req.Lifespan)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}
	perms, err := request.ParsePermissions(req.Permissions)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	token, err := h.tokenManager.CreateToken(lifespan, perms, req.Note, req.Temporary)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.TokenFromModel(token))
}

// List handles GET /token
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, response.TokensFromModel(h.tokenManager.Tokens()))
}

// Update handles PATCH /token/{token}
func (h *TokenHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := model.TokenID(mux.Vars(r)["token"])

	var req request.UpdateTokenRequest
	if err := decodeBody(r, &req, true); err != nil {
		WriteError(w, err)
		return
	}
	if req.Note == nil {
		WriteError(w, NewInvalidRequestError("note is required"))
		return
	}

	if err := h.tokenManager.UpdateNote(id, *req.Note); err != nil {
		WriteError(w, err)
		return
	}

	token, _ := h.tokenManager.GetToken(id)
	response.OK(w, response.TokenFromModel(token))
}

// Invalidate handles DELETE /token/{token}
func (h *TokenHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	id := model.TokenID(mux.Vars(r)["token"])

	if err := h.tokenManager.InvalidateToken(id); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}
