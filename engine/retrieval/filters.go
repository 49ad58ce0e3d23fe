package retrieval

import (
	"regexp"
	"strings"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// PreprocessQuery normalizes whitespace before retrieval.
func PreprocessQuery(query string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(query, " "))
}

// InferFilter widens a caller-supplied filter with door attributes mentioned
// in the query text. Caller-set fields always win; inference only fills gaps.
func InferFilter(query string, base domain.Filter) domain.Filter {
	f := base
	q := strings.ToLower(query)

	if f.DoorCategory == "" || f.DoorCategory == domain.CategoryUnknown {
		switch {
		case strings.Contains(q, "interior"):
			f.DoorCategory = domain.CategoryInterior
		case strings.Contains(q, "exterior"):
			f.DoorCategory = domain.CategoryExterior
		}
	}

	if f.DoorType == "" || f.DoorType == domain.TypeUnknown {
		switch {
		case strings.Contains(q, "bifold"):
			f.DoorType = domain.TypeBifold
		case strings.Contains(q, "prehung"):
			f.DoorType = domain.TypePrehung
		case strings.Contains(q, "dentil shelf"):
			f.DoorType = domain.TypeDentilShelf
		case strings.Contains(q, "entry door"):
			f.DoorType = domain.TypeEntry
		case strings.Contains(q, "patio door"):
			f.DoorType = domain.TypePatio
		}
	}

	// A recognized door type pins its category.
	if f.DoorCategory == "" || f.DoorCategory == domain.CategoryUnknown {
		if cat := domain.CategoryFor(f.DoorType); cat != domain.CategoryUnknown {
			f.DoorCategory = cat
		}
	}

	// domain.ContentAny counts as caller-set: it keeps the content scope open
	// and must not be re-pinned from query keywords.
	if f.ContentType == "" {
		switch {
		case strings.Contains(q, "step") || strings.Contains(q, "install"):
			f.ContentType = domain.ContentInstallationStep
		case strings.Contains(q, "tool"):
			f.ContentType = domain.ContentTool
		case strings.Contains(q, "safety") || strings.Contains(q, "precaution"):
			f.ContentType = domain.ContentSafety
		}
	}

	return f
}
