package render

import (
	"encoding/json"
	"fmt"
	"sort"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"

	"gorm.io/datatypes"
)

// Renderer combines a template's sections with resolved merge-field values
// into the immutable snapshot stored on a document. Rendering is pure: the
// same sections and values always produce byte-identical output.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render substitutes placeholders inside text-bearing content and leaves
// structural fields untouched. A placeholder whose key is missing from the
// resolved values fails the whole render; nothing ever renders as a silent
// blank.
func (r *Renderer) Render(sections []models.TemplateSection, values map[string]string) ([]models.RenderedSection, error) {
	seen := make(map[int]bool, len(sections))
	out := make([]models.RenderedSection, 0, len(sections))

	for i := range sections {
		s := &sections[i]
		if seen[s.Order] {
			return nil, &domain.ValidationError{Field: "order", Reason: fmt.Sprintf("duplicate section order %d", s.Order)}
		}
		seen[s.Order] = true

		content, err := s.DecodeContent()
		if err != nil {
			return nil, err
		}
		if content.Type != s.Type {
			return nil, &domain.ValidationError{Field: "type", Reason: "section type does not match content"}
		}
		if err := content.Validate(); err != nil {
			return nil, err
		}

		rendered := content.Clone()
		for _, field := range rendered.TextFields() {
			substituted, err := substitute(*field, values)
			if err != nil {
				return nil, err
			}
			*field = substituted
		}

		out = append(out, models.RenderedSection{
			Order:   s.Order,
			Type:    s.Type,
			Content: rendered,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func substitute(text string, values map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(text, func(s string) string {
		key := placeholderRe.FindStringSubmatch(s)[1]
		v, ok := values[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return s
		}
		return v
	})
	if missing != "" {
		return "", &domain.ValidationError{Field: missing, Reason: "merge field used in content but not declared"}
	}
	return out, nil
}

// MarshalSections encodes the snapshot for the document's JSON column. Slice
// order and struct field order make the encoding deterministic.
func MarshalSections(sections []models.RenderedSection) (datatypes.JSON, error) {
	b, err := json.Marshal(sections)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// MarshalValues encodes the resolved value map; encoding/json sorts map keys,
// keeping this deterministic too.
func MarshalValues(values map[string]string) (datatypes.JSON, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
