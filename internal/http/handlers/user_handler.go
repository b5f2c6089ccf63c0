package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

// CreateUser godoc
// @ID          createUser
// @Summary     Register
// @Description Creates an unverified user and emails a verification code.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  services.RegisterRequest  true  "New account"
// @Success     200  {object}  handlers.Envelope
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Router      /users/create-user [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.auth.Register(c.Request.Context(), req); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK,
		"Please check your email to verify your account. We have sent you an OTP to complete the registration process.", nil)
}

// CreateModerator godoc
// @ID          createModerator
// @Summary     Create a moderator
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  services.RegisterRequest  true  "New moderator"
// @Success     201  {object}  handlers.Envelope{data=domain.User}
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /users/create-moderator [post]
func (h *Handlers) CreateModerator(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.auth.CreateModerator(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusCreated, "Moderator created successfully", u)
}

// Profile godoc
// @ID          profile
// @Summary     My profile
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=domain.User}
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/profile [get]
func (h *Handlers) Profile(c *gin.Context) {
	u, err := h.users.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile data retrieved successfully", u)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update my profile
// @Description Accepts JSON, or multipart with the JSON in "data" and an optional "image" file.
// @Tags        Users
// @Accept      json,mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       data   formData  string  false  "UpdateProfileRequest as JSON"
// @Param       image  formData  file    false  "Avatar (jpeg, png, gif or webp)"
// @Success     200  {object}  handlers.Envelope{data=domain.User}
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /users/update-profile [patch]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	up, release, err := h.bindWithImage(c, &req)
	defer release()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c), req, up)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully", u)
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List users
// @Description Users with role "user". Supports searchTerm, sort, page, limit, fields and filters.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       searchTerm  query  string  false  "Search name, email and phone"
// @Param       sort        query  string  false  "Sort field, prefix with - for descending"
// @Param       page        query  int     false  "Page"
// @Param       limit       query  int     false  "Limit"
// @Success     200  {object}  handlers.Envelope{data=[]domain.User,meta=query.Meta}
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /users/get-all-users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	users, meta, err := h.users.ListUsers(c.Request.Context(), listParams(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	respondPage(c, "Users retrieved successfully", users, meta)
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "User ID"
// @Success     200  {object}  handlers.Envelope{data=domain.User}
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/get-all-users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	u, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "User retrieved successfully", u)
}
