package doc

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// 序列化格式：
//   Run   → {"tag":"Run","text":"abc","styles":["bold"]}
//   Group → {"tag":"Group","attrs":{"tag":"p"},"children":[...]}
// 样式集合按字典序输出，保证相同文档得到相同字节（快照校验和依赖这一点）。

const (
	tagRun   = "Run"
	tagGroup = "Group"
)

type nodeJSON struct {
	Tag      string  `json:"tag"`
	Text     string  `json:"text,omitempty"`
	Styles   []Style `json:"styles,omitempty"`
	Attrs    Attrs   `json:"attrs,omitempty"`
	Children Span    `json:"children,omitempty"`
}

func (s Span) MarshalJSON() ([]byte, error) {
	out := make([]nodeJSON, 0, len(s))
	for _, node := range s {
		switch v := node.(type) {
		case Run:
			out = append(out, nodeJSON{Tag: tagRun, Text: v.Text, Styles: v.Styles.Sorted()})
		case Group:
			out = append(out, nodeJSON{Tag: tagGroup, Attrs: v.Attrs, Children: v.Children})
		default:
			return nil, fmt.Errorf("unknown node type: %T", node)
		}
	}
	return json.Marshal(out)
}

func (s *Span) UnmarshalJSON(data []byte) error {
	var raw []nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Span, 0, len(raw))
	for _, n := range raw {
		switch n.Tag {
		case tagRun:
			out = append(out, Run{Text: n.Text, Styles: NewStyleSet(n.Styles...)})
		case tagGroup:
			attrs := n.Attrs
			if attrs == nil {
				attrs = Attrs{}
			}
			children := n.Children
			if children == nil {
				children = Span{}
			}
			out = append(out, Group{Attrs: attrs, Children: children})
		default:
			return fmt.Errorf("invalid node tag: %q", n.Tag)
		}
	}
	*s = out
	return nil
}

func (s StyleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StyleSet) UnmarshalJSON(data []byte) error {
	var styles []Style
	if err := json.Unmarshal(data, &styles); err != nil {
		return err
	}
	*s = NewStyleSet(styles...)
	return nil
}

// Encode 把 span 编码为 JSON，供快照存储和缓存使用。
func Encode(s Span) ([]byte, error) {
	if s == nil {
		s = Span{}
	}
	return json.Marshal(s)
}

// Decode 是 Encode 的逆过程。
func Decode(data []byte) (Span, error) {
	var s Span
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}
