package edit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iudanet/sitekeeper/internal/models"
)

// Path addresses one editable value inside a record.
//
//	title               scalar field "title"
//	features.2.title    field "title" of item 2 in nested list "features"
type Path struct {
	List  string
	Field string
	Index int
}

// ParsePath разбирает строковый путь к полю.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, ".")
	for _, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("%w: %q", models.ErrInvalidPath, s)
		}
	}

	switch len(parts) {
	case 1:
		return Path{Field: parts[0]}, nil
	case 3:
		index, err := strconv.Atoi(parts[1])
		if err != nil || index < 0 {
			return Path{}, fmt.Errorf("%w: bad index in %q", models.ErrInvalidPath, s)
		}
		return Path{List: parts[0], Index: index, Field: parts[2]}, nil
	default:
		return Path{}, fmt.Errorf("%w: %q", models.ErrInvalidPath, s)
	}
}

// IsNested reports whether the path points into a nested list.
func (p Path) IsNested() bool {
	return p.List != ""
}

func (p Path) String() string {
	if !p.IsNested() {
		return p.Field
	}
	return fmt.Sprintf("%s.%d.%s", p.List, p.Index, p.Field)
}

// set writes value at p inside rec. Nested indices must already exist.
func (p Path) set(rec *models.ContentRecord, value any) error {
	if !p.IsNested() {
		if rec.Fields == nil {
			rec.Fields = make(map[string]any)
		}
		rec.Fields[p.Field] = value
		return nil
	}

	items, ok := rec.Nested[p.List]
	if !ok {
		return fmt.Errorf("%w: unknown list %q", models.ErrInvalidPath, p.List)
	}
	if p.Index >= len(items) {
		return fmt.Errorf("%w: index %d out of range for %q (len %d)", models.ErrInvalidPath, p.Index, p.List, len(items))
	}
	if items[p.Index] == nil {
		items[p.Index] = make(models.Item)
	}
	items[p.Index][p.Field] = value
	return nil
}

// Lookup reads the value at path inside rec. ok is false if the path is valid
// but nothing is set there.
func Lookup(rec *models.ContentRecord, path string) (value any, ok bool, err error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, false, err
	}
	value, ok = p.get(rec)
	return value, ok, nil
}

// get reads the value at p inside rec.
func (p Path) get(rec *models.ContentRecord) (any, bool) {
	if !p.IsNested() {
		v, ok := rec.Fields[p.Field]
		return v, ok
	}
	items, ok := rec.Nested[p.List]
	if !ok || p.Index >= len(items) {
		return nil, false
	}
	v, ok := items[p.Index][p.Field]
	return v, ok
}
