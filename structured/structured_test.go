package structured

import (
	"testing"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moontrade/rxredis/xstream"
)

type quote struct {
	Marble string
	Code   string
	Price  float64
	Size   int64
	Tags   []string
	Live   bool
}

func (q quote) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"marble":`)
	w.String(q.Marble)
	w.RawString(`,"code":`)
	w.String(q.Code)
	w.RawString(`,"price":`)
	w.Float64(q.Price)
	w.RawString(`,"size":`)
	w.Int64(q.Size)
	w.RawString(`,"tags":`)
	w.RawByte('[')
	for i, tag := range q.Tags {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(tag)
	}
	w.RawByte(']')
	w.RawString(`,"live":`)
	w.Bool(q.Live)
	w.RawByte('}')
}

func (q *quote) UnmarshalEasyJSON(in *jlexer.Lexer) {
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
			q.Marble = in.String()
		case "code":
			q.Code = in.String()
		case "price":
			q.Price = in.Float64()
		case "size":
			q.Size = in.Int64()
		case "tags":
			q.Tags = q.Tags[:0]
			in.Delim('[')
			for !in.IsDelim(']') {
				q.Tags = append(q.Tags, in.String())
				in.WantComma()
			}
			in.Delim(']')
		case "live":
			q.Live = in.Bool()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

type scalar float64

func (s scalar) MarshalEasyJSON(w *jwriter.Writer) {
	w.Float64(float64(s))
}

func TestUnstructure(t *testing.T) {
	rec, err := Unstructure(quote{Marble: "3", Code: "007", Price: 101.5, Size: 2, Tags: []string{"a", "b"}, Live: true})
	require.NoError(t, err)
	assert.Equal(t, xstream.RecordOf(
		"marble", "3",
		"code", "007",
		"price", "101.5",
		"size", "2",
		"tags", `["a","b"]`,
		"live", "true",
	), rec)
}

func TestUnstructureNotObject(t *testing.T) {
	_, err := Unstructure(scalar(1))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestStructureRoundTrip(t *testing.T) {
	in := quote{Marble: "3", Code: "007", Price: 101.5, Size: 2, Tags: []string{"a"}, Live: true}
	rec, err := Unstructure(in)
	require.NoError(t, err)

	var out quote
	require.NoError(t, Structure(rec, &out))
	assert.Equal(t, in, out)
}

func TestStructureFromRedisFields(t *testing.T) {
	// fields written by hand, as a producer outside of Go would
	rec := xstream.RecordOf("marble", "4", "price", "12", "extra", "ignored", "tags", `["x"]`)
	var out quote
	require.NoError(t, Structure(rec, &out))
	assert.Equal(t, quote{Marble: "4", Price: 12, Tags: []string{"x"}}, out)
}

func TestStructureInvalid(t *testing.T) {
	var out quote
	err := Structure(xstream.RecordOf("price", "not a number"), &out)
	assert.Error(t, err)
}

func TestMapper(t *testing.T) {
	fn := Mapper[quote]()
	rec, err := fn(quote{Marble: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", rec.Value("marble"))
}

func TestSelectors(t *testing.T) {
	rec := xstream.RecordOf(
		"price", "101.5",
		"size", "7",
		"book", `{"bids":[1.5,2.5],"venue":{"name":"x"},"tags":["a","b"]}`,
		"name", "plain text",
	)
	assert.Equal(t, 101.5, Float(rec, "price", ""))
	assert.Equal(t, int64(7), Int(rec, "size", ""))
	assert.Equal(t, 2.5, Float(rec, "book", "bids.1"))
	assert.Equal(t, "x", String(rec, "book", "venue.name"))
	assert.Equal(t, "plain text", String(rec, "name", ""))
	assert.Zero(t, Float(rec, "missing", ""))

	buf := make([]float64, 0, 4)
	bids := Floats(rec, "book", "bids", buf)
	assert.Equal(t, []float64{1.5, 2.5}, bids)
	assert.Equal(t, []string{"a", "b"}, Strings(rec, "book", "tags", nil))
	assert.Nil(t, Floats(rec, "book", "missing", nil))
}
