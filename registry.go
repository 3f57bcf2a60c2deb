package workflow

import (
	"fmt"
	"slices"
)

// NodeType identifies a kind of block. Values are the wire names the
// execution service dispatches on.
type NodeType string

const (
	ImageInput    NodeType = "imageInput"
	TextInput     NodeType = "textInput"
	PromptBox     NodeType = "promptBox"
	GenerateImage NodeType = "genImageBlock"
)

// NodeSpec describes a node type: its label, connection handles and the
// data fields a user may edit on it.
type NodeSpec struct {
	Type     NodeType `json:"type"`
	Label    string   `json:"label"`
	Inputs   []string `json:"inputs"`
	Outputs  []string `json:"outputs"`
	Editable []Field  `json:"editable"`
}

var registry = []NodeSpec{
	{
		Type:     ImageInput,
		Label:    "Image Input",
		Outputs:  []string{"output_image"},
		Editable: []Field{FieldLabel, FieldImageData, FieldImagePath},
	},
	{
		Type:     TextInput,
		Label:    "Text Input",
		Outputs:  []string{"output"},
		Editable: []Field{FieldLabel, FieldText},
	},
	{
		Type:     PromptBox,
		Label:    "Prompt Box",
		Inputs:   []string{"input"},
		Outputs:  []string{"output"},
		Editable: []Field{FieldLabel, FieldPrompt},
	},
	{
		Type:     GenerateImage,
		Label:    "Generate Image",
		Inputs:   []string{"input"},
		Outputs:  []string{"output"},
		Editable: []Field{FieldLabel, FieldPrompt},
	},
}

// Lookup returns the NodeSpec registered for t.
func Lookup(t NodeType) (NodeSpec, bool) {
	for _, s := range registry {
		if s.Type == t {
			return s, true
		}
	}
	return NodeSpec{}, false
}

// NodeTypes returns every registered node type in toolbar order.
func NodeTypes() []NodeSpec {
	return slices.Clone(registry)
}

// Defaults returns the data a freshly added node of this type starts with.
func (s NodeSpec) Defaults() NodeData {
	return NodeData{Label: s.Label}
}

// Validate reports ErrFieldNotEditable for the first field in p that this
// node type does not let users edit.
func (s NodeSpec) Validate(p Patch) error {
	for _, f := range p.Fields() {
		if !slices.Contains(s.Editable, f) {
			return fmt.Errorf("%w: %s on %s", ErrFieldNotEditable, f, s.Type)
		}
	}
	return nil
}

func (s NodeSpec) HasInput(handle string) bool  { return slices.Contains(s.Inputs, handle) }
func (s NodeSpec) HasOutput(handle string) bool { return slices.Contains(s.Outputs, handle) }

// DefaultInput returns the first input handle, or "" when the type accepts no links.
func (s NodeSpec) DefaultInput() string {
	if len(s.Inputs) == 0 {
		return ""
	}
	return s.Inputs[0]
}

// DefaultOutput returns the first output handle, or "" when the type has none.
func (s NodeSpec) DefaultOutput() string {
	if len(s.Outputs) == 0 {
		return ""
	}
	return s.Outputs[0]
}
