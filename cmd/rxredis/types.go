package main

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

type producerData struct {
	Marble string
}

type transformedData struct {
	Marble string
	Random float64
}

func (v producerData) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"marble":`)
	w.String(v.Marble)
	w.RawByte('}')
}

func (v *producerData) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeString()
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "marble":
			v.Marble = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func (v transformedData) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"marble":`)
	w.String(v.Marble)
	w.RawString(`,"random":`)
	w.Float64(v.Random)
	w.RawByte('}')
}
