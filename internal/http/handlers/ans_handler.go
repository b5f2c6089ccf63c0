// Question/answer endpoints:
//   - POST /ans/create            ask a question inside a room
//   - GET  /rooms                 list the caller's rooms
//   - GET  /rooms/{id}/turns      page through a room's transcript
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, route, key), the handler returns that stored turn
// without calling the completion service and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/http/middleware"
	"github.com/tbourn/go-advisor-backend/internal/query"
	"github.com/tbourn/go-advisor-backend/internal/services"
	"github.com/tbourn/go-advisor-backend/internal/utils"
)

// HeaderIdempotencyReplayed marks a response served from a stored result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// AskRequest is the body of POST /ans/create.
type AskRequest struct {
	// Question is the user's business question.
	Question string `json:"question" binding:"required" example:"How do I calculate EBITDA?"`
	// RoomID continues an existing room; it must belong to the caller.
	RoomID string `json:"roomId" example:"0b6f2c3e-8f8a-4a47-9a57-2d4f7f0c9e11"`
	// CreateRoom opens a new room named after the question.
	CreateRoom bool `json:"createRoom" example:"false"`
}

// CreateAnswer godoc
// @ID          createAnswer
// @Summary     Ask a question
// @Description Resolves the room (explicit or new), sends the room transcript plus the
// @Description question to the completion service and stores the turn.
// @Description Supports idempotency via the Idempotency-Key header (same key → same turn).
// @Tags        Answers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                  false  "Idempotency key for safe retries"
// @Param       body             body    handlers.AskRequest     true   "Question"
// @Success     200  {object}  handlers.Envelope{data=services.AskResult}
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or too long question"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Failure     429  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Completion service unavailable"
// @Router      /ans/create [post]
func (h *Handlers) CreateAnswer(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUser(c)

	if middleware.IsReplay(c) {
		res, err := h.conv.Replay(ctx, uid, middleware.ReplayRef(c))
		if err == nil {
			c.Header(HeaderIdempotencyReplayed, "true")
			respond(c, http.StatusOK, "Chat created successfully", res)
			return
		}
		// A vanished turn is treated as a fresh request.
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotent replay failed; answering again")
	}

	var req AskRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.conv.Ask(ctx, services.AskRequest{
		UserID:     uid,
		Question:   req.Question,
		RoomID:     req.RoomID,
		CreateRoom: req.CreateRoom,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	if key, ok := middleware.GetIdempotencyKey(c); ok && h.idem != nil {
		if err := h.idem.Save(ctx, uid, c.FullPath(), key, res.Turn.ID, http.StatusOK, h.idemTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("turn_id", res.Turn.ID).Msg("idempotency record not saved")
		}
	}
	respond(c, http.StatusOK, "Chat created successfully", res)
}

// ListRooms godoc
// @ID          listRooms
// @Summary     List my rooms
// @Description Supports searchTerm, sort, page, limit, fields and exact-match filters.
// @Tags        Answers
// @Produce     json
// @Security    BearerAuth
// @Param       searchTerm  query  string  false  "Search in room names"
// @Param       sort        query  string  false  "Sort field, prefix with - for descending"  default(-created_at)
// @Param       page        query  int     false  "Page"   minimum(1)
// @Param       limit       query  int     false  "Limit"  minimum(1) maximum(100)
// @Success     200  {object}  handlers.Envelope{data=[]domain.Room,meta=query.Meta}
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /rooms [get]
func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, meta, err := h.rooms.List(c.Request.Context(), currentUser(c), listParams(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	respondPage(c, "Rooms retrieved successfully", rooms, meta)
}

// ListTurns godoc
// @ID          listTurns
// @Summary     Room transcript
// @Description Returns the turns of one of my rooms, oldest first.
// @Tags        Answers
// @Produce     json
// @Security    BearerAuth
// @Param       id     path   string  true   "Room ID"
// @Param       page   query  int     false  "Page"   minimum(1)
// @Param       limit  query  int     false  "Limit"  minimum(1) maximum(100)
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Success     200  {object}  handlers.Envelope{data=[]domain.Turn,meta=query.Meta}
// @Header      200  {string}  ETag  "Weak ETag of the page"
// @Success     304
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Router      /rooms/{id}/turns [get]
func (h *Handlers) ListTurns(c *gin.Context) {
	ctx := c.Request.Context()
	uid, roomID := currentUser(c), c.Param("id")
	page, limit, _ := utils.PageWindow(c.Query("page"), c.Query("limit"), h.defLimit)

	// ETag pre-check (best effort).
	if count, newest, err := h.conv.TranscriptVersion(ctx, uid, roomID); err == nil {
		var ts int64
		if newest != nil {
			ts = newest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"turns:%s:%d:%d:%d:%d"`, roomID, count, ts, page, limit)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	turns, total, err := h.conv.ListTurns(ctx, uid, roomID, page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	pages := utils.TotalPages(total, limit)
	respondPage(c, "Turns retrieved successfully", turns, query.Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	})
}
