package op

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"richCollab/backend/internal/ot/doc"
)

// 序列化格式（与渲染端约定的 tag/fields 形式）：
//   {"tag":"AddSkip","fields":3}
//   {"tag":"AddChars","fields":"hello"}
//   {"tag":"AddStyles","fields":[3,["bold"]]}
//   {"tag":"AddWithGroup","fields":[...]}
//   {"tag":"AddGroup","fields":[{"tag":"p"},[...]]}
// 删除指令同理，Op 整体为 {"del":[...],"add":[...]}。

var ErrInvalidElement = errors.New("invalid operation element")

type element struct {
	Tag    string          `json:"tag"`
	Fields json.RawMessage `json:"fields,omitempty"`
}

func encodeElement(tag string, fields any) (element, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return element{}, err
	}
	return element{Tag: tag, Fields: raw}, nil
}

func (s AddSpan) MarshalJSON() ([]byte, error) {
	out := make([]element, 0, len(s))
	for _, e := range s {
		var (
			el  element
			err error
		)
		switch v := e.(type) {
		case AddSkip:
			el, err = encodeElement("AddSkip", v.N)
		case AddChars:
			el, err = encodeElement("AddChars", v.Text)
		case AddStyles:
			el, err = encodeElement("AddStyles", []any{v.N, v.Styles})
		case AddWithGroup:
			el, err = encodeElement("AddWithGroup", v.Span)
		case AddGroup:
			el, err = encodeElement("AddGroup", []any{attrsOrEmpty(v.Attrs), v.Span})
		default:
			return nil, fmt.Errorf("%w: %T", ErrInvalidElement, e)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return json.Marshal(out)
}

func (s *AddSpan) UnmarshalJSON(data []byte) error {
	var raw []element
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(AddSpan, 0, len(raw))
	for _, el := range raw {
		switch el.Tag {
		case "AddSkip":
			n, err := decodeCount(el.Fields)
			if err != nil {
				return fmt.Errorf("%w: AddSkip: %w", ErrInvalidElement, err)
			}
			out = append(out, AddSkip{N: n})
		case "AddChars":
			var text string
			if err := json.Unmarshal(el.Fields, &text); err != nil {
				return fmt.Errorf("%w: AddChars: %w", ErrInvalidElement, err)
			}
			out = append(out, AddChars{Text: text})
		case "AddStyles":
			n, styles, err := decodeCountStyles(el.Fields)
			if err != nil {
				return fmt.Errorf("%w: AddStyles: %w", ErrInvalidElement, err)
			}
			out = append(out, AddStyles{N: n, Styles: styles})
		case "AddWithGroup":
			var inner AddSpan
			if err := json.Unmarshal(el.Fields, &inner); err != nil {
				return fmt.Errorf("%w: AddWithGroup: %w", ErrInvalidElement, err)
			}
			out = append(out, AddWithGroup{Span: inner})
		case "AddGroup":
			var pair []json.RawMessage
			if err := json.Unmarshal(el.Fields, &pair); err != nil || len(pair) != 2 {
				return fmt.Errorf("%w: AddGroup fields", ErrInvalidElement)
			}
			var attrs doc.Attrs
			if err := json.Unmarshal(pair[0], &attrs); err != nil {
				return fmt.Errorf("%w: AddGroup attrs: %w", ErrInvalidElement, err)
			}
			var inner AddSpan
			if err := json.Unmarshal(pair[1], &inner); err != nil {
				return fmt.Errorf("%w: AddGroup span: %w", ErrInvalidElement, err)
			}
			out = append(out, AddGroup{Attrs: attrsOrEmpty(attrs), Span: inner})
		default:
			return fmt.Errorf("%w: unknown tag %q", ErrInvalidElement, el.Tag)
		}
	}
	*s = out
	return nil
}

func (s DelSpan) MarshalJSON() ([]byte, error) {
	out := make([]element, 0, len(s))
	for _, e := range s {
		var (
			el  element
			err error
		)
		switch v := e.(type) {
		case DelSkip:
			el, err = encodeElement("DelSkip", v.N)
		case DelChars:
			el, err = encodeElement("DelChars", v.N)
		case DelStyles:
			el, err = encodeElement("DelStyles", []any{v.N, v.Styles})
		case DelWithGroup:
			el, err = encodeElement("DelWithGroup", v.Span)
		case DelGroup:
			el, err = encodeElement("DelGroup", v.Span)
		default:
			return nil, fmt.Errorf("%w: %T", ErrInvalidElement, e)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return json.Marshal(out)
}

func (s *DelSpan) UnmarshalJSON(data []byte) error {
	var raw []element
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(DelSpan, 0, len(raw))
	for _, el := range raw {
		switch el.Tag {
		case "DelSkip", "DelChars":
			n, err := decodeCount(el.Fields)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalidElement, el.Tag, err)
			}
			if el.Tag == "DelSkip" {
				out = append(out, DelSkip{N: n})
			} else {
				out = append(out, DelChars{N: n})
			}
		case "DelStyles":
			n, styles, err := decodeCountStyles(el.Fields)
			if err != nil {
				return fmt.Errorf("%w: DelStyles: %w", ErrInvalidElement, err)
			}
			out = append(out, DelStyles{N: n, Styles: styles})
		case "DelWithGroup", "DelGroup":
			var inner DelSpan
			if err := json.Unmarshal(el.Fields, &inner); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalidElement, el.Tag, err)
			}
			if el.Tag == "DelWithGroup" {
				out = append(out, DelWithGroup{Span: inner})
			} else {
				out = append(out, DelGroup{Span: inner})
			}
		default:
			return fmt.Errorf("%w: unknown tag %q", ErrInvalidElement, el.Tag)
		}
	}
	*s = out
	return nil
}

type opJSON struct {
	Del DelSpan `json:"del"`
	Add AddSpan `json:"add"`
}

func (o Op) MarshalJSON() ([]byte, error) {
	del, add := o.Del, o.Add
	if del == nil {
		del = DelSpan{}
	}
	if add == nil {
		add = AddSpan{}
	}
	return json.Marshal(opJSON{Del: del, Add: add})
}

func (o *Op) UnmarshalJSON(data []byte) error {
	var raw opJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Del, o.Add = raw.Del, raw.Add
	return nil
}

// 计数不允许为负
func decodeCount(field json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(field, &n); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func decodeCountStyles(fields json.RawMessage) (int, doc.StyleSet, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(fields, &pair); err != nil {
		return 0, nil, err
	}
	if len(pair) != 2 {
		return 0, nil, fmt.Errorf("want [count, styles], got %d fields", len(pair))
	}
	n, err := decodeCount(pair[0])
	if err != nil {
		return 0, nil, err
	}
	var styles doc.StyleSet
	if err := json.Unmarshal(pair[1], &styles); err != nil {
		return 0, nil, err
	}
	return n, styles, nil
}

func attrsOrEmpty(a doc.Attrs) doc.Attrs {
	if a == nil {
		return doc.Attrs{}
	}
	return a
}
