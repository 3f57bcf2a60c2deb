package workflow

// Field names a NodeData field. Values match the json keys.
type Field string

const (
	FieldLabel       Field = "label"
	FieldPrompt      Field = "prompt"
	FieldText        Field = "text"
	FieldImageData   Field = "imageData"
	FieldImagePath   Field = "imagePath"
	FieldResult      Field = "result"
	FieldResultImage Field = "resultImage"
)

// Patch is a partial NodeData update. Nil fields are left untouched.
type Patch struct {
	Label       *string `json:"label,omitempty"`
	Prompt      *string `json:"prompt,omitempty"`
	Text        *string `json:"text,omitempty"`
	ImageData   *string `json:"imageData,omitempty"`
	ImagePath   *string `json:"imagePath,omitempty"`
	Result      *string `json:"result,omitempty"`
	ResultImage *string `json:"resultImage,omitempty"`
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Fields lists the fields p sets, in declaration order.
func (p Patch) Fields() []Field {
	var fs []Field
	for _, e := range p.entries() {
		if e.val != nil {
			fs = append(fs, e.field)
		}
	}
	return fs
}

// IsEmpty reports whether p sets no field.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

type patchEntry struct {
	field Field
	val   *string
}

func (p Patch) entries() []patchEntry {
	return []patchEntry{
		{FieldLabel, p.Label},
		{FieldPrompt, p.Prompt},
		{FieldText, p.Text},
		{FieldImageData, p.ImageData},
		{FieldImagePath, p.ImagePath},
		{FieldResult, p.Result},
		{FieldResultImage, p.ResultImage},
	}
}

// Merge returns d with every field set in p applied over it.
func (d NodeData) Merge(p Patch) NodeData {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&d.Label, p.Label)
	set(&d.Prompt, p.Prompt)
	set(&d.Text, p.Text)
	set(&d.ImageData, p.ImageData)
	set(&d.ImagePath, p.ImagePath)
	set(&d.Result, p.Result)
	set(&d.ResultImage, p.ResultImage)
	return d
}

// OutputPatch converts an execution output into the patch that reconciles
// it onto a node: text becomes result and image becomes resultImage.
func OutputPatch(out NodeOutput) Patch {
	return Patch{Result: out.Text, ResultImage: out.Image}
}
