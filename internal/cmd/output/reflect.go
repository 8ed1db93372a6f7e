package output

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/recon/internal/cmd/table"
)

type column struct {
	index int
	title string
}

// reflectTable turns a struct into Property/Value rows and a non-empty
// struct slice into one row per element.
func reflectTable(data any) (table.Data, bool) {
	v := reflect.Indirect(reflect.ValueOf(data))
	switch {
	case v.Kind() == reflect.Struct:
		d := table.Data{Headers: []string{"Property", "Value"}}
		for _, c := range columns(v.Type()) {
			d.Rows = append(d.Rows, []string{c.title, cell(v.Field(c.index))})
		}
		return d, true

	case v.Kind() == reflect.Slice && v.Len() > 0 && v.Type().Elem().Kind() == reflect.Struct:
		cols := columns(v.Type().Elem())
		d := table.Data{Headers: make([]string, len(cols)), Rows: make([][]string, v.Len())}
		for i, c := range cols {
			d.Headers[i] = c.title
		}
		for i := range v.Len() {
			row := make([]string, len(cols))
			for j, c := range cols {
				row[j] = cell(v.Index(i).Field(c.index))
			}
			d.Rows[i] = row
		}
		return d, true
	}
	return table.Data{}, false
}

// columns lists exported fields not tagged json:"-", titled from their
// json name with underscores as spaces.
func columns(t reflect.Type) []column {
	caser := cases.Title(language.English)
	var cols []column
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			cols = append(cols, column{i, f.Name})
		default:
			cols = append(cols, column{i, caser.String(strings.ReplaceAll(name, "_", " "))})
		}
	}
	return cols
}

func cell(v reflect.Value) string {
	return fmt.Sprintf("%v", v.Interface())
}
