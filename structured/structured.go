// Package structured converts between typed values and stream records.
// Values are serialized with easyjson; every top-level JSON member becomes
// one record field. Strings are stored verbatim and everything else as raw
// JSON, so records stay readable with plain Redis tooling.
package structured

import (
	"errors"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/buffer"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"

	"github.com/moontrade/rxredis/xstream"
)

var (
	ErrNotObject = errors.New("value does not serialize to a JSON object")
)

// Unstructure flattens v into record fields in declaration order.
func Unstructure(v easyjson.Marshaler) (xstream.Record, error) {
	data, err := marshal(v, nil)
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrNotObject
	}
	var rec xstream.Record
	doc.ForEach(func(key, value gjson.Result) bool {
		f := xstream.Field{Name: key.String(), Value: value.Raw}
		if value.Type == gjson.String {
			f.Value = value.String()
		}
		rec = append(rec, f)
		return true
	})
	return rec, nil
}

// Structure rebuilds into from rec. The current value of into tells which
// members are strings; members it does not serialize are guessed from the
// field text.
func Structure(rec xstream.Record, into easyjson.MarshalerUnmarshaler) error {
	template, err := marshal(into, nil)
	if err != nil {
		return err
	}
	kinds := make(map[string]gjson.Type)
	gjson.ParseBytes(template).ForEach(func(key, value gjson.Result) bool {
		kinds[key.String()] = value.Type
		return true
	})

	w := jwriter.Writer{}
	w.RawByte('{')
	for i, f := range rec {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(f.Name)
		w.RawByte(':')
		kind, known := kinds[f.Name]
		switch {
		case known && kind == gjson.String:
			w.String(f.Value)
		case known && kind != gjson.Null && gjson.Valid(f.Value):
			w.RawString(f.Value)
		case !known && gjson.Valid(f.Value) && gjson.Parse(f.Value).Type != gjson.String:
			w.RawString(f.Value)
		default:
			w.String(f.Value)
		}
	}
	w.RawByte('}')
	data, err := w.BuildBytes()
	if err != nil {
		return err
	}
	lexer := jlexer.Lexer{
		Data:              data,
		UseMultipleErrors: false,
	}
	into.UnmarshalEasyJSON(&lexer)
	return lexer.Error()
}

// Mapper returns an Unstructure function for sinks of T.
func Mapper[T easyjson.Marshaler]() func(T) (xstream.Record, error) {
	return func(v T) (xstream.Record, error) {
		return Unstructure(v)
	}
}

func marshal(v easyjson.Marshaler, into []byte) ([]byte, error) {
	writer := jwriter.Writer{
		Buffer: buffer.Buffer{
			Buf: into,
		},
	}
	v.MarshalEasyJSON(&writer)
	return writer.BuildBytes()
}
