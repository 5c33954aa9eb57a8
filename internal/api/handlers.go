package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/protasker/internal/annotationservice"
	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	svc *annotationservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *annotationservice.Service) *Handler {
	return &Handler{svc: svc}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", chi.URLParam(r, "id"), apperr.ErrInvalidInput)
	}
	return id, nil
}

// annotationRef builds a store.Ref from the {collection} URL param and the
// optional path/category query params.
func annotationRef(r *http.Request) (store.Ref, error) {
	coll, err := models.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		return store.Ref{}, err
	}
	q := r.URL.Query()
	return store.Ref{Collection: coll, Path: q.Get("path"), Category: q.Get("category")}, nil
}

// checklistRef defaults the collection to files.
func checklistRef(collection, path string) (store.Ref, error) {
	if collection == "" {
		return store.Ref{Collection: models.Files, Path: path}, nil
	}
	coll, err := models.ParseCollection(collection)
	if err != nil {
		return store.Ref{}, err
	}
	return store.Ref{Collection: coll, Path: path}, nil
}

// ListAnchors handles GET /api/anchors.
//
//	@Summary		List annotated anchors per collection
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	map[string][]string
//	@Security		BearerAuth
//	@Router			/anchors [get]
func (h *Handler) ListAnchors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Anchors(r.Context()))
}

// Tree handles GET /api/tree.
//
//	@Summary		Root nodes of the annotation tree under the active view
//	@Tags			tree
//	@Produce		json
//	@Success		200	{array}	projection.Node
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Tree(r.Context()))
}

// TreeChildren handles GET /api/tree/children.
//
//	@Summary		Children of a tree node
//	@Tags			tree
//	@Produce		json
//	@Param			node	query		string	true	"Node handle"
//	@Success		200		{array}		projection.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/children [get]
func (h *Handler) TreeChildren(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.TreeChildren(r.Context(), r.URL.Query().Get("node"))
	if err != nil {
		writeError(w, "tree children", err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// CreateAnnotation handles POST /api/annotations.
//
//	@Summary		Annotate a file or directory
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateAnnotationRequest	true	"Annotation"
//	@Success		201		{object}	models.Located
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations [post]
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req CreateAnnotationRequest
	if !decode(w, r, &req) {
		return
	}
	loc, err := h.svc.AddAnnotation(r.Context(), req.toService())
	if err != nil {
		writeError(w, "create annotation", err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

// CreateLineAnnotation handles POST /api/lines.
//
//	@Summary		Annotate one line of a file
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateLineRequest	true	"Line annotation"
//	@Success		201		{object}	models.Located
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lines [post]
func (h *Handler) CreateLineAnnotation(w http.ResponseWriter, r *http.Request) {
	var req CreateLineRequest
	if !decode(w, r, &req) {
		return
	}
	loc, err := h.svc.AddLineAnnotation(r.Context(), annotationservice.LineRequest{
		Path:     req.Path,
		Line:     req.Line,
		Type:     req.Type,
		Content:  req.Content,
		Deadline: req.Deadline,
	})
	if err != nil {
		writeError(w, "create line annotation", err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

// LineAnnotations handles GET /api/lines.
//
//	@Summary		Annotations on one line
//	@Tags			annotations
//	@Produce		json
//	@Param			path	query		string	true	"File path"
//	@Param			line	query		int		true	"1-based line"
//	@Success		200		{array}		models.LineAnnotation
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lines [get]
func (h *Handler) LineAnnotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	line, err := strconv.Atoi(q.Get("line"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("line must be an integer"))
		return
	}
	out, err := h.svc.LineAnnotations(r.Context(), q.Get("path"), line)
	if err != nil {
		writeError(w, "line annotations", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetAnnotation handles GET /api/annotations/{collection}/{id}.
//
//	@Summary		Get one annotation
//	@Tags			annotations
//	@Produce		json
//	@Param			collection	path		string	true	"Collection"	Enums(files, directories, lines)
//	@Param			id			path		int		true	"Annotation id"
//	@Param			path		query		string	false	"Anchor path"
//	@Param			category	query		string	false	"Category"
//	@Success		200			{object}	models.Located
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{collection}/{id} [get]
func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	ref, err := annotationRef(r)
	if err != nil {
		writeError(w, "get annotation", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, "get annotation", err)
		return
	}
	loc, err := h.svc.Get(r.Context(), ref, id)
	if err != nil {
		writeError(w, "get annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// EditAnnotation handles PUT /api/annotations/{collection}/{id}.
//
//	@Summary		Replace an annotation's text (or a checklist's name)
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			collection	path		string		true	"Collection"	Enums(files, directories, lines)
//	@Param			id			path		int			true	"Annotation id"
//	@Param			body		body		EditRequest	true	"New content"
//	@Success		200			{object}	models.Located
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{collection}/{id} [put]
func (h *Handler) EditAnnotation(w http.ResponseWriter, r *http.Request) {
	ref, err := annotationRef(r)
	if err != nil {
		writeError(w, "edit annotation", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, "edit annotation", err)
		return
	}
	var req EditRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path != "" {
		ref.Path = req.Path
	}
	if req.Category != "" {
		ref.Category = req.Category
	}
	loc, err := h.svc.Edit(r.Context(), ref, id, req.Content)
	if err != nil {
		writeError(w, "edit annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// SetDeadline handles PUT /api/annotations/{collection}/{id}/deadline.
//
//	@Summary		Set or clear an annotation's deadline
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			collection	path		string			true	"Collection"	Enums(files, directories, lines)
//	@Param			id			path		int				true	"Annotation id"
//	@Param			body		body		DeadlineRequest	true	"Deadline, empty to clear"
//	@Success		200			{object}	models.Located
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{collection}/{id}/deadline [put]
func (h *Handler) SetDeadline(w http.ResponseWriter, r *http.Request) {
	ref, err := annotationRef(r)
	if err != nil {
		writeError(w, "set deadline", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, "set deadline", err)
		return
	}
	var req DeadlineRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path != "" {
		ref.Path = req.Path
	}
	if req.Category != "" {
		ref.Category = req.Category
	}
	loc, err := h.svc.SetDeadline(r.Context(), ref, id, req.Deadline)
	if err != nil {
		writeError(w, "set deadline", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// DeleteAnnotation handles DELETE /api/annotations/{collection}/{id}.
//
// Deleting an absent id is a no-op and also answers 204; X-Deleted tells the
// two cases apart.
//
//	@Summary		Delete an annotation
//	@Tags			annotations
//	@Param			collection	path	string	true	"Collection"	Enums(files, directories, lines)
//	@Param			id			path	int		true	"Annotation id"
//	@Param			path		query	string	false	"Anchor path"
//	@Param			category	query	string	false	"Category"
//	@Success		204
//	@Header			204	{string}	X-Deleted	"true when an annotation was removed"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{collection}/{id} [delete]
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	ref, err := annotationRef(r)
	if err != nil {
		writeError(w, "delete annotation", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, "delete annotation", err)
		return
	}
	removed, err := h.svc.Delete(r.Context(), ref, id)
	if err != nil {
		writeError(w, "delete annotation", err)
		return
	}
	w.Header().Set("X-Deleted", strconv.FormatBool(removed))
	w.WriteHeader(http.StatusNoContent)
}

// AddItem handles POST /api/checklists/{id}/items.
//
//	@Summary		Append a checklist item
//	@Tags			checklists
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Checklist id"
//	@Param			body	body		AddItemRequest	true	"Item"
//	@Success		201		{object}	models.Checklist
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checklists/{id}/items [post]
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	var req AddItemRequest
	if !decode(w, r, &req) {
		return
	}
	ref, err := checklistRef(req.Collection, req.Path)
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	cl, err := h.svc.AddItem(r.Context(), ref, id, req.Text)
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, cl)
}

// ToggleItem handles POST /api/checklists/{id}/items/toggle.
//
//	@Summary		Flip a checklist item's done flag
//	@Tags			checklists
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int			true	"Checklist id"
//	@Param			body	body		ItemRequest	true	"Item address"
//	@Success		200		{object}	models.Checklist
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checklists/{id}/items/toggle [post]
func (h *Handler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, "toggle item", err)
		return
	}
	var req ItemRequest
	if !decode(w, r, &req) {
		return
	}
	ref, err := checklistRef(req.Collection, req.Path)
	if err != nil {
		writeError(w, "toggle item", err)
		return
	}
	cl, err := h.svc.ToggleItem(r.Context(), ref, id, req.itemRef())
	if err != nil {
		writeError(w, "toggle item", err)
		return
	}
	writeJSON(w, http.StatusOK, cl)
}

// RemoveItem handles DELETE /api/checklists/{id}/items.
//
//	@Summary		Remove a checklist item
//	@Tags			checklists
//	@Produce		json
//	@Param			id			path		int		true	"Checklist id"
//	@Param			collection	query		string	false	"Collection"	Enums(files, directories, lines)
//	@Param			path		query		string	false	"Anchor path"
//	@Param			index		query		int		false	"Item index"
//	@Param			uid			query		string	false	"Item uid"
//	@Success		200			{object}	models.Checklist
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checklists/{id}/items [delete]
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, "remove item", err)
		return
	}
	q := r.URL.Query()
	req := ItemRequest{Collection: q.Get("collection"), Path: q.Get("path"), UID: q.Get("uid")}
	if raw := q.Get("index"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("index must be an integer"))
			return
		}
		req.Index = &idx
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	ref, err := checklistRef(req.Collection, req.Path)
	if err != nil {
		writeError(w, "remove item", err)
		return
	}
	cl, err := h.svc.RemoveItem(r.Context(), ref, id, req.itemRef())
	if err != nil {
		writeError(w, "remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, cl)
}

// Progress handles GET /api/checklists/{id}/progress.
//
//	@Summary		Checklist completion
//	@Tags			checklists
//	@Produce		json
//	@Param			id			path		int		true	"Checklist id"
//	@Param			collection	query		string	false	"Collection"	Enums(files, directories, lines)
//	@Param			path		query		string	false	"Anchor path"
//	@Success		200			{object}	checklist.Progress
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checklists/{id}/progress [get]
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, "progress", err)
		return
	}
	q := r.URL.Query()
	ref, err := checklistRef(q.Get("collection"), q.Get("path"))
	if err != nil {
		writeError(w, "progress", err)
		return
	}
	p, err := h.svc.Progress(r.Context(), ref, id)
	if err != nil {
		writeError(w, "progress", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Search handles GET /api/search.
//
// The query becomes the active view: the tree only shows matching nodes until
// the view is reset or a filter is applied.
//
//	@Summary		Case-insensitive substring search
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Query"
//	@Success		200	{object}	ListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ApplySearch(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(res))
}

// FullText handles GET /api/search/fulltext.
//
//	@Summary		Ranked full-text search over the SQLite index
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{array}		index.SearchResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search/fulltext [get]
func (h *Handler) FullText(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := h.svc.FullText(r.Context(), q.Get("q"), limit)
	if err != nil {
		writeError(w, "full-text search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Filter handles GET /api/filter.
//
//	@Summary		Filter annotations by type
//	@Tags			search
//	@Produce		json
//	@Param			type		query		string	true	"Annotation type or 'all'"
//	@Param			category	query		string	false	"Collection"	Enums(all, files, directories, lines)
//	@Success		200			{object}	ListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/filter [get]
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.ApplyFilter(r.Context(), q.Get("type"), q.Get("category"))
	if err != nil {
		writeError(w, "filter", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(res))
}

// ViewState handles GET /api/view.
//
//	@Summary		Active search or filter
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	projection.ViewState
//	@Security		BearerAuth
//	@Router			/view [get]
func (h *Handler) ViewState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ViewState(r.Context()))
}

// ResetView handles POST /api/view/reset.
//
//	@Summary		Clear the active search or filter
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	projection.ViewState
//	@Security		BearerAuth
//	@Router			/view/reset [post]
func (h *Handler) ResetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ResetView(r.Context()))
}

// ClearAnchor handles DELETE /api/anchors/{collection}.
//
//	@Summary		Remove every annotation on one anchor
//	@Tags			tree
//	@Produce		json
//	@Param			collection	path		string	true	"Collection"	Enums(files, directories, lines)
//	@Param			path		query		string	true	"Anchor path"
//	@Success		200			{object}	map[string]int
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/anchors/{collection} [delete]
func (h *Handler) ClearAnchor(w http.ResponseWriter, r *http.Request) {
	coll, err := models.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, "clear anchor", err)
		return
	}
	n, err := h.svc.ClearAnchor(r.Context(), coll, r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, "clear anchor", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// ClearAll handles DELETE /api/store.
//
//	@Summary		Remove every annotation
//	@Tags			tree
//	@Success		204
//	@Security		BearerAuth
//	@Router			/store [delete]
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAll(r.Context()); err != nil {
		writeError(w, "clear store", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
