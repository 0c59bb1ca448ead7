package bytecode

import (
	"fmt"

	json "github.com/goccy/go-json"

	"richCollab/backend/internal/ot/doc"
)

// 渲染端读取的格式：{"tag":"Advance","fields":3}、{"tag":"Enter"}、
// {"tag":"Insert","fields":["abc",["bold"]]}、{"tag":"Wrap","fields":[2,{"tag":"p"}]}。

type codeJSON struct {
	Tag    string          `json:"tag"`
	Fields json.RawMessage `json:"fields,omitempty"`
}

func (p *Program) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	out := make([]codeJSON, 0, len(p.codes))
	for _, c := range p.codes {
		var (
			tag    string
			fields any
		)
		switch v := c.(type) {
		case Enter:
			tag = "Enter"
		case Exit:
			tag = "Exit"
		case Advance:
			tag, fields = "Advance", v.N
		case Delete:
			tag, fields = "Delete", v.N
		case Insert:
			tag, fields = "Insert", []any{v.Text, v.Styles}
		case Wrap:
			attrs := v.Attrs
			if attrs == nil {
				attrs = doc.Attrs{}
			}
			tag, fields = "Wrap", []any{v.N, attrs}
		case Unwrap:
			tag = "Unwrap"
		default:
			return nil, fmt.Errorf("unknown code: %T", c)
		}
		cj := codeJSON{Tag: tag}
		if fields != nil {
			raw, err := json.Marshal(fields)
			if err != nil {
				return nil, err
			}
			cj.Fields = raw
		}
		out = append(out, cj)
	}
	return json.Marshal(out)
}

// UnmarshalJSON 逐条经 Place 还原，因此解码结果同样满足合并不变式。
func (p *Program) UnmarshalJSON(data []byte) error {
	var raw []codeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	prog := NewProgram()
	for _, cj := range raw {
		switch cj.Tag {
		case "Enter":
			prog.Place(Enter{})
		case "Exit":
			prog.Place(Exit{})
		case "Unwrap":
			prog.Place(Unwrap{})
		case "Advance", "Delete":
			var n int
			if err := json.Unmarshal(cj.Fields, &n); err != nil {
				return fmt.Errorf("bytecode %s: %w", cj.Tag, err)
			}
			if cj.Tag == "Advance" {
				prog.Place(Advance{N: n})
			} else {
				prog.Place(Delete{N: n})
			}
		case "Insert":
			var pair []json.RawMessage
			if err := json.Unmarshal(cj.Fields, &pair); err != nil || len(pair) != 2 {
				return fmt.Errorf("bytecode Insert: invalid fields")
			}
			var text string
			var styles doc.StyleSet
			if err := json.Unmarshal(pair[0], &text); err != nil {
				return fmt.Errorf("bytecode Insert text: %w", err)
			}
			if err := json.Unmarshal(pair[1], &styles); err != nil {
				return fmt.Errorf("bytecode Insert styles: %w", err)
			}
			prog.Place(Insert{Text: text, Styles: styles})
		case "Wrap":
			var pair []json.RawMessage
			if err := json.Unmarshal(cj.Fields, &pair); err != nil || len(pair) != 2 {
				return fmt.Errorf("bytecode Wrap: invalid fields")
			}
			var n int
			var attrs doc.Attrs
			if err := json.Unmarshal(pair[0], &n); err != nil {
				return fmt.Errorf("bytecode Wrap count: %w", err)
			}
			if err := json.Unmarshal(pair[1], &attrs); err != nil {
				return fmt.Errorf("bytecode Wrap attrs: %w", err)
			}
			prog.Place(Wrap{N: n, Attrs: attrs})
		default:
			return fmt.Errorf("unknown bytecode tag: %q", cj.Tag)
		}
	}
	*p = *prog
	return nil
}
