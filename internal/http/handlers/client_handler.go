package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

// CreateClient godoc
// @ID          createClient
// @Summary     Create a client
// @Description Accepts JSON, or multipart with the JSON in "data" and an optional "image" file.
// @Tags        Clients
// @Accept      json,mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       body   body      services.CreateClientRequest  false  "Client (JSON requests)"
// @Param       data   formData  string                        false  "CreateClientRequest as JSON (multipart requests)"
// @Param       image  formData  file                          false  "Logo"
// @Success     201  {object}  handlers.Envelope{data=domain.Client}
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /clients/create-client [post]
func (h *Handlers) CreateClient(c *gin.Context) {
	var req services.CreateClientRequest
	up, release, err := h.bindWithImage(c, &req)
	defer release()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	cl, err := h.clients.Create(c.Request.Context(), req, up)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusCreated, "Client created successfully", cl)
}

// ListClients godoc
// @ID          listClients
// @Summary     List clients
// @Description Deleted clients are listed too; filter with is_deleted=false.
// @Tags        Clients
// @Produce     json
// @Security    BearerAuth
// @Param       searchTerm  query  string  false  "Search name, code and description"
// @Param       is_deleted  query  bool    false  "Exact filter"
// @Param       sort        query  string  false  "Sort field, prefix with - for descending"
// @Param       page        query  int     false  "Page"
// @Param       limit       query  int     false  "Limit"
// @Success     200  {object}  handlers.Envelope{data=[]domain.Client,meta=query.Meta}
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /clients [get]
func (h *Handlers) ListClients(c *gin.Context) {
	list, meta, err := h.clients.List(c.Request.Context(), listParams(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []domain.Client{}
	}
	respondPage(c, "Clients retrieved successfully", list, meta)
}

// GetClient godoc
// @ID          getClient
// @Summary     Get a client
// @Tags        Clients
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Client ID"
// @Success     200  {object}  handlers.Envelope{data=domain.Client}
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /clients/{id} [get]
func (h *Handlers) GetClient(c *gin.Context) {
	cl, err := h.clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Client retrieved successfully", cl)
}

// UpdateClient godoc
// @ID          updateClient
// @Summary     Update a client
// @Description Deleted clients cannot be updated.
// @Tags        Clients
// @Accept      json,mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       id     path      string                        true   "Client ID"
// @Param       body   body      services.UpdateClientRequest  false  "Fields to change (JSON requests)"
// @Param       data   formData  string                        false  "UpdateClientRequest as JSON (multipart requests)"
// @Param       image  formData  file                          false  "New logo"
// @Success     200  {object}  handlers.Envelope{data=domain.Client}
// @Failure     400  {object}  handlers.ErrorResponse  "Client is deleted"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /clients/{id} [patch]
func (h *Handlers) UpdateClient(c *gin.Context) {
	var req services.UpdateClientRequest
	up, release, err := h.bindWithImage(c, &req)
	defer release()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	cl, err := h.clients.Update(c.Request.Context(), c.Param("id"), req, up)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Client updated successfully", cl)
}

// DeleteClient godoc
// @ID          deleteClient
// @Summary     Soft-delete a client
// @Tags        Clients
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Client ID"
// @Success     200  {object}  handlers.Envelope
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /clients/{id} [delete]
func (h *Handlers) DeleteClient(c *gin.Context) {
	if err := h.clients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Client deleted successfully", nil)
}
