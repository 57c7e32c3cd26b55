package structured

import (
	"github.com/tidwall/gjson"

	"github.com/moontrade/rxredis/xstream"
)

func selectValue(rec xstream.Record, field, selector string) gjson.Result {
	value := rec.Value(field)
	if selector == "" {
		return gjson.Parse(value)
	}
	return gjson.Get(value, selector)
}

// Float reads a number from field. An empty selector parses the whole field,
// otherwise the selector is a gjson path into it.
func Float(rec xstream.Record, field, selector string) float64 {
	return selectValue(rec, field, selector).Float()
}

// Int reads an integer from field.
func Int(rec xstream.Record, field, selector string) int64 {
	return selectValue(rec, field, selector).Int()
}

// String reads text from field. A field that is not JSON is returned as is.
func String(rec xstream.Record, field, selector string) string {
	if selector == "" {
		return rec.Value(field)
	}
	return gjson.Get(rec.Value(field), selector).String()
}

// Floats reads an array of numbers, reusing into when it is large enough.
func Floats(rec xstream.Record, field, selector string, into []float64) []float64 {
	results := selectValue(rec, field, selector).Array()
	if len(results) == 0 {
		return nil
	}
	if len(results) > cap(into) {
		into = make([]float64, len(results))
	} else {
		into = into[0:len(results)]
	}
	for i, result := range results {
		into[i] = result.Float()
	}
	return into
}

// Strings reads an array of strings, reusing into when it is large enough.
func Strings(rec xstream.Record, field, selector string, into []string) []string {
	results := selectValue(rec, field, selector).Array()
	if len(results) == 0 {
		return nil
	}
	if len(results) > cap(into) {
		into = make([]string, len(results))
	} else {
		into = into[0:len(results)]
	}
	for i, result := range results {
		into[i] = result.String()
	}
	return into
}
