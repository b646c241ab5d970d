package ai

import (
	"bytes"
	"embed"
	"html/template"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/lojasmm/sqldash/internal/llmjson"
)

// NoDataPage is served when the metrics hold no usable chart or table rows.
const NoDataPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Dashboard</title></head>
<body>
<h1>No data</h1>
<p>No valid data was found to build the dashboard. Check that the queries returned rows for the requested metrics.</p>
</body>
</html>
`

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

type dashboardData struct {
	Labels []string
	Values []float64
	Rows   []tableRow
}

type tableRow struct {
	Name  string
	Count int64
}

// RenderFallback builds the two-panel dashboard from a metrics document of
// the form {"metrics":[{"visualization_type":..., "data":[...]}]}. Rows
// without the expected fields are skipped.
func RenderFallback(metrics string) (string, error) {
	data := collect(metrics)
	if len(data.Labels) == 0 && len(data.Rows) == 0 {
		return NoDataPage, nil
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func collect(metrics string) dashboardData {
	data := dashboardData{Labels: []string{}, Values: []float64{}, Rows: []tableRow{}}

	doc, err := llmjson.ParseString(metrics)
	if err != nil {
		return data
	}
	list, err := doc.Get("metrics")
	if err != nil {
		return data
	}
	entries, err := list.Items()
	if err != nil {
		return data
	}

	for _, entry := range entries {
		vt, err := field(entry, "visualization_type")
		if err != nil {
			continue
		}
		kind, err := vt.Str()
		if err != nil {
			continue
		}
		rowsVal, err := field(entry, "data")
		if err != nil {
			continue
		}
		rows, err := rowsVal.Items()
		if err != nil {
			continue
		}

		for _, row := range rows {
			name, ok := stringField(row, "name")
			if !ok {
				continue
			}
			switch kind {
			case "bar_chart":
				if v, ok := numberField(row, "total_sales"); ok {
					data.Labels = append(data.Labels, name)
					data.Values = append(data.Values, v)
				}
			case "table":
				if v, ok := numberField(row, "customer_count"); ok && v == math.Trunc(v) {
					data.Rows = append(data.Rows, tableRow{Name: name, Count: int64(v)})
				}
			}
		}
	}
	return data
}

func field(v llmjson.Value, key string) (llmjson.Value, error) {
	if v.Kind() != llmjson.Object {
		return llmjson.Value{}, llmjson.ErrKind
	}
	return v.Get(key)
}

func stringField(row llmjson.Value, key string) (string, bool) {
	v, err := field(row, key)
	if err != nil {
		return "", false
	}
	s, err := v.Str()
	return s, err == nil
}

// numberField accepts JSON numbers and numeric strings such as "10.5".
func numberField(row llmjson.Value, key string) (float64, bool) {
	v, err := field(row, key)
	if err != nil {
		return 0, false
	}
	switch v.Kind() {
	case llmjson.Number:
		f, err := v.Float()
		return f, err == nil
	case llmjson.String:
		s, _ := v.Str()
		f, err := cast.ToFloat64E(s)
		return f, err == nil
	default:
		return 0, false
	}
}

const errorPageHead = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Dashboard error</title></head>
`

func errorPage(message string) string {
	return errorPageHead + `<body>
<h1>Error</h1>
<p>` + template.HTMLEscapeString(message) + `</p>
</body>
</html>
`
}

// IsErrorPage reports whether page is one of the pages Dashboard returns
// instead of a dashboard.
func IsErrorPage(page string) bool {
	return page == NoDataPage || strings.HasPrefix(page, errorPageHead)
}
