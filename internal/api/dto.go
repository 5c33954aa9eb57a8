package api

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/protasker/internal/annotationservice"
	"github.com/starford/protasker/internal/checklist"
	"github.com/starford/protasker/internal/models"
)

var collectionRule = validation.In(string(models.Files), string(models.Directories), string(models.Lines))

var typeName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// CreateAnnotationRequest is the request body for a file or directory
// annotation. For checklists Content is the name and Items the initial items.
type CreateAnnotationRequest struct {
	Path      string   `json:"path" example:"/src/main.go" validate:"required"`
	Directory bool     `json:"directory"`
	Type      string   `json:"type" example:"note" validate:"required"`
	Content   string   `json:"content" example:"Refactor this" validate:"required"`
	Items     []string `json:"items,omitempty"`
	Deadline  string   `json:"deadline,omitempty" example:"2025-03-01T12:00:00Z"`
}

// Validate implements validation.Validatable.
func (r CreateAnnotationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Type, validation.Required, validation.Match(typeName)),
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.Items, validation.Each(validation.Required)),
	)
}

func (r CreateAnnotationRequest) toService() annotationservice.AddRequest {
	return annotationservice.AddRequest{
		Path:      r.Path,
		Directory: r.Directory,
		Type:      r.Type,
		Content:   r.Content,
		Items:     r.Items,
		Deadline:  r.Deadline,
	}
}

// CreateLineRequest is the request body for a line annotation.
type CreateLineRequest struct {
	Path     string `json:"path" example:"/src/main.go" validate:"required"`
	Line     int    `json:"line" example:"42" validate:"required"`
	Type     string `json:"type,omitempty" example:"line"`
	Content  string `json:"content" example:"Off by one?" validate:"required"`
	Deadline string `json:"deadline,omitempty"`
}

// Validate implements validation.Validatable.
func (r CreateLineRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Line, validation.Required, validation.Min(1)),
		validation.Field(&r.Type, validation.Match(typeName)),
		validation.Field(&r.Content, validation.Required),
	)
}

// EditRequest replaces an annotation's content.
type EditRequest struct {
	Path     string `json:"path,omitempty"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content" validate:"required"`
}

// Validate implements validation.Validatable.
func (r EditRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

// DeadlineRequest sets or, when Deadline is empty, clears a deadline.
type DeadlineRequest struct {
	Path     string `json:"path,omitempty"`
	Category string `json:"category,omitempty"`
	Deadline string `json:"deadline"`
}

// AddItemRequest appends a checklist item.
type AddItemRequest struct {
	Collection string `json:"collection,omitempty" example:"files"`
	Path       string `json:"path,omitempty"`
	Text       string `json:"text" validate:"required"`
}

// Validate implements validation.Validatable.
func (r AddItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Collection, collectionRule),
		validation.Field(&r.Text, validation.Required),
	)
}

// ItemRequest addresses one checklist item by uid or index.
type ItemRequest struct {
	Collection string `json:"collection,omitempty" example:"files"`
	Path       string `json:"path,omitempty"`
	Index      *int   `json:"index,omitempty"`
	UID        string `json:"uid,omitempty"`
}

// Validate implements validation.Validatable.
func (r ItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Collection, collectionRule),
		validation.Field(&r.Index, validation.When(r.UID == "", validation.NotNil), validation.Min(0)),
	)
}

func (r ItemRequest) itemRef() checklist.ItemRef {
	ref := checklist.ItemRef{UID: r.UID}
	if r.Index != nil {
		ref.Index = *r.Index
	}
	return ref
}

// ListResponse wraps located annotations.
type ListResponse struct {
	Results []models.Located `json:"results" validate:"required"`
	Total   int              `json:"total" example:"3" validate:"required"`
}

func listResponse(res []models.Located) ListResponse {
	if res == nil {
		res = []models.Located{}
	}
	return ListResponse{Results: res, Total: len(res)}
}
