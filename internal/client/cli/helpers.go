package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/iudanet/sitekeeper/internal/client/iocli"
	"github.com/iudanet/sitekeeper/internal/client/snapshot"
	"github.com/iudanet/sitekeeper/internal/models"
)

// fieldEdit is one parsed edit argument: a field assignment or an append.
type fieldEdit struct {
	value  any
	item   models.Item
	path   string
	append bool
}

// parseEdit разбирает "path=value" или "list[]={json}"
func parseEdit(arg string) (fieldEdit, error) {
	lhs, rhs, ok := strings.Cut(arg, "=")
	if !ok || lhs == "" {
		return fieldEdit{}, fmt.Errorf("invalid edit %q: expected path=value", arg)
	}

	if list, isAppend := strings.CutSuffix(lhs, "[]"); isAppend {
		var item models.Item
		if err := json.Unmarshal([]byte(rhs), &item); err != nil {
			return fieldEdit{}, fmt.Errorf("invalid item for %s: %w", list, err)
		}
		if item == nil {
			return fieldEdit{}, fmt.Errorf("invalid item for %s: expected a JSON object", list)
		}
		return fieldEdit{path: list, item: item, append: true}, nil
	}

	return fieldEdit{path: lhs, value: parseValue(rhs)}, nil
}

// parseValue переводит текст из командной строки в скалярное значение.
// Кавычки принудительно задают строку: "42" остается текстом.
func parseValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// formatValue печатает значение поля так, как его вводит оператор
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printRecord выводит запись целиком: поля и вложенные списки с индексами
func printRecord(out iocli.IO, rec *models.ContentRecord) {
	out.Printf("Key:     %s\n", rec.Key)
	out.Printf("Topic:   %s\n", rec.Topic)
	out.Printf("Version: %d\n", rec.Version)
	if !rec.UpdatedAt.IsZero() {
		out.Printf("Updated: %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	if len(rec.Fields) > 0 {
		out.Println()
		for _, name := range sortedKeys(rec.Fields) {
			out.Printf("  %s = %s\n", name, formatValue(rec.Fields[name]))
		}
	}

	for _, list := range sortedKeys(rec.Nested) {
		out.Println()
		out.Printf("  %s (%d items)\n", list, len(rec.Nested[list]))
		for i, item := range rec.Nested[list] {
			for _, field := range sortedKeys(item) {
				out.Printf("    %s.%d.%s = %s\n", list, i, field, formatValue(item[field]))
			}
		}
	}
}

// printSections выводит строки списка админки, включая еще не созданные секции
func printSections(out iocli.IO, sections []snapshot.Section) {
	for _, s := range sections {
		if s.State == snapshot.NotCreated {
			out.Printf("  %-24s %s\n", s.Key, "(not created)")
			continue
		}
		out.Printf("  %-24s v%-5d %s\n", s.Key, s.Record.Version, summary(s.Record))
	}
}

// summary одна строка для списка: title или первое строковое поле
func summary(rec *models.ContentRecord) string {
	if title, ok := rec.Fields["title"].(string); ok {
		return title
	}
	for _, name := range sortedKeys(rec.Fields) {
		if s, ok := rec.Fields[name].(string); ok {
			return s
		}
	}
	return ""
}
