package bytecode

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"

	"richCollab/backend/internal/ot/doc"
)

func TestPlace_Coalescing(t *testing.T) {
	tests := []struct {
		name  string
		codes []Code
		want  []Code
	}{
		{
			name:  "advance",
			codes: []Code{Advance{N: 1}, Advance{N: 1}},
			want:  []Code{Advance{N: 2}},
		},
		{
			name:  "delete",
			codes: []Code{Delete{N: 2}, Delete{N: 3}},
			want:  []Code{Delete{N: 5}},
		},
		{
			name:  "insert",
			codes: []Code{Insert{Text: "a"}, Insert{Text: "b"}},
			want:  []Code{Insert{Text: "ab"}},
		},
		{
			name:  "insert different styles",
			codes: []Code{Insert{Text: "a"}, Insert{Text: "b", Styles: doc.NewStyleSet("bold")}},
			want:  []Code{Insert{Text: "a"}, Insert{Text: "b", Styles: doc.NewStyleSet("bold")}},
		},
		{
			name:  "only tail is checked",
			codes: []Code{Advance{N: 1}, Delete{N: 1}, Advance{N: 1}},
			want:  []Code{Advance{N: 1}, Delete{N: 1}, Advance{N: 1}},
		},
		{
			name:  "structural codes never merge",
			codes: []Code{Enter{}, Enter{}, Exit{}, Exit{}, Unwrap{}, Unwrap{}},
			want:  []Code{Enter{}, Enter{}, Exit{}, Exit{}, Unwrap{}, Unwrap{}},
		},
		{
			name:  "zero length dropped",
			codes: []Code{Advance{N: 2}, Delete{N: 0}, Insert{}, Advance{N: 1}},
			want:  []Code{Advance{N: 3}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgram()
			for _, c := range tt.codes {
				p.Place(c)
			}
			if !codesEqual(p.Codes(), tt.want) {
				t.Fatalf("Codes() = %#v, want %#v", p.Codes(), tt.want)
			}
		})
	}
}

func TestCodes_ReturnsCopy(t *testing.T) {
	p := NewProgram()
	p.Place(Advance{N: 1})
	codes := p.Codes()
	codes[0] = Delete{N: 9}
	if got := p.Codes()[0]; got != (Advance{N: 1}) {
		t.Fatalf("program mutated through Codes(): %#v", got)
	}
}

func TestCodec_Program(t *testing.T) {
	p := NewProgram()
	for _, c := range []Code{
		Enter{}, Advance{N: 2}, Delete{N: 1},
		Insert{Text: "hi", Styles: doc.NewStyleSet("bold")},
		Exit{}, Wrap{N: 1, Attrs: doc.Attrs{"tag": "p"}}, Unwrap{},
	} {
		p.Place(c)
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[{"tag":"Enter"},{"tag":"Advance","fields":2},{"tag":"Delete","fields":1},` +
		`{"tag":"Insert","fields":["hi",["bold"]]},{"tag":"Exit"},` +
		`{"tag":"Wrap","fields":[1,{"tag":"p"}]},{"tag":"Unwrap"}]`
	if string(data) != want {
		t.Fatalf("Marshal() =\n %s\nwant\n %s", data, want)
	}
	var got Program
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !codesEqual(got.Codes(), p.Codes()) {
		t.Fatalf("Unmarshal() = %#v, want %#v", got.Codes(), p.Codes())
	}
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name  string
		start doc.Span
		codes []Code
		want  doc.Span
	}{
		{
			name:  "insert in middle",
			start: doc.Span{doc.Run{Text: "ad"}},
			codes: []Code{Advance{N: 1}, Insert{Text: "bc"}},
			want:  doc.Span{doc.Run{Text: "abcd"}},
		},
		{
			name:  "restyle",
			start: doc.Span{doc.Run{Text: "abc"}},
			codes: []Code{Advance{N: 1}, Delete{N: 1}, Insert{Text: "b", Styles: doc.NewStyleSet("bold")}},
			want:  doc.Span{doc.Run{Text: "a"}, doc.Run{Text: "b", Styles: doc.NewStyleSet("bold")}, doc.Run{Text: "c"}},
		},
		{
			name:  "wrap",
			start: doc.Span{doc.Run{Text: "x"}, doc.Run{Text: "y"}},
			codes: []Code{Advance{N: 2}, Wrap{N: 2, Attrs: doc.Attrs{}}},
			want:  doc.Span{doc.Group{Children: doc.Span{doc.Run{Text: "xy"}}}},
		},
		{
			name:  "unwrap",
			start: doc.Span{doc.Group{Children: doc.Span{doc.Run{Text: "a"}}}, doc.Run{Text: "b"}},
			codes: []Code{Enter{}, Advance{N: 1}, Exit{}, Unwrap{}, Delete{N: 1}},
			want:  doc.Span{doc.Run{Text: "a"}},
		},
		{
			name:  "enter and edit nested",
			start: doc.Span{doc.Run{Text: "a"}, doc.Group{Children: doc.Span{doc.Run{Text: "bc"}}}},
			codes: []Code{Advance{N: 1}, Enter{}, Delete{N: 1}, Insert{Text: "B"}, Exit{}},
			want:  doc.Span{doc.Run{Text: "a"}, doc.Group{Children: doc.Span{doc.Run{Text: "Bc"}}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgram()
			for _, c := range tt.codes {
				p.Place(c)
			}
			got, err := Replay(tt.start, p)
			if err != nil {
				t.Fatalf("Replay() error = %v", err)
			}
			if !got.Equal(tt.want) {
				gd, _ := doc.Encode(got)
				wd, _ := doc.Encode(tt.want)
				t.Fatalf("Replay() = %s, want %s", gd, wd)
			}
		})
	}
}

func TestReplay_Errors(t *testing.T) {
	tests := []struct {
		name  string
		codes []Code
	}{
		{"advance past end", []Code{Advance{N: 5}}},
		{"delete past end", []Code{Delete{N: 5}}},
		{"enter run", []Code{Enter{}}},
		{"exit root", []Code{Exit{}}},
		{"unwrap run", []Code{Advance{N: 1}, Unwrap{}}},
		{"wrap too many", []Code{Advance{N: 1}, Wrap{N: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgram()
			for _, c := range tt.codes {
				p.Place(c)
			}
			_, err := Replay(doc.Span{doc.Run{Text: "ab"}}, p)
			if !errors.Is(err, ErrReplay) {
				t.Fatalf("Replay() error = %v, want ErrReplay", err)
			}
		})
	}
}

func codesEqual(a, b []Code) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		switch x := a[i].(type) {
		case Insert:
			y, ok := b[i].(Insert)
			if !ok || x.Text != y.Text || !x.Styles.Equal(y.Styles) {
				return false
			}
		case Wrap:
			y, ok := b[i].(Wrap)
			if !ok || x.N != y.N || !x.Attrs.Equal(y.Attrs) {
				return false
			}
		default:
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}
