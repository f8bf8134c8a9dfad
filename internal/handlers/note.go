package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/noteguard/backend/internal/middleware"
	"github.com/noteguard/backend/internal/services"
	"github.com/noteguard/backend/pkg/response"
)

type NoteHandler struct {
	notes *services.NoteService
}

func NewNoteHandler(notes *services.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

type CreateNoteRequest struct {
	Title   string `json:"title" binding:"required,max=100"`
	Content string `json:"content" binding:"required,max=2000"`
}

type UpdateNoteRequest struct {
	Title   string `json:"title" binding:"required,max=100"`
	Content string `json:"content" binding:"required,max=2000"`
}

// Create creates a note for the authenticated user
// POST /api/notes
func (h *NoteHandler) Create(c *gin.Context) {
	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	note, err := h.notes.Create(c.Request.Context(), middleware.GetUserID(c), req.Title, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Created(c, note)
}

// List returns all notes of the authenticated user
// GET /api/notes
func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.notes.ListByUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, notes)
}

// GetByID returns one note by id
// GET /api/notes/:id
func (h *NoteHandler) GetByID(c *gin.Context) {
	note, err := h.notes.GetByID(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, note)
}

// Update replaces title and content of a note
// PUT /api/notes/:id
func (h *NoteHandler) Update(c *gin.Context) {
	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	note, err := h.notes.Update(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Title, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, note)
}

// Delete removes a note
// DELETE /api/notes/:id
func (h *NoteHandler) Delete(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}

	response.NoContent(c)
}

func (h *NoteHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoteNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrStorageUnavailable):
		response.ServiceUnavailable(c, "storage temporarily unavailable")
	default:
		response.ServerError(c, err.Error())
	}
}
