package editor

import "github.com/bassista/snipsync/internal/model"

// Field names one editable attribute of a snippet.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldLanguage    Field = "language"
	FieldVersion     Field = "version"
	FieldContent     Field = "content"
	FieldExtension   Field = "extension"
)

// AllFields lists the tracked fields in display order.
var AllFields = []Field{FieldName, FieldDescription, FieldLanguage, FieldVersion, FieldContent, FieldExtension}

// Fields holds one value per tracked field.
type Fields struct {
	Name        string
	Description string
	Language    string
	Version     string
	Content     string
	Extension   string
}

// FieldsOf projects the editable part of a detail record.
func FieldsOf(d model.SnippetDetail) Fields {
	return Fields{
		Name:        d.Name,
		Description: d.Description,
		Language:    d.Language,
		Version:     d.Version,
		Content:     d.Content,
		Extension:   model.NormalizeExtension(d.Extension),
	}
}

func (f Fields) Get(field Field) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldDescription:
		return f.Description
	case FieldLanguage:
		return f.Language
	case FieldVersion:
		return f.Version
	case FieldContent:
		return f.Content
	case FieldExtension:
		return f.Extension
	}
	return ""
}

func (f *Fields) set(field Field, value string) {
	switch field {
	case FieldName:
		f.Name = value
	case FieldDescription:
		f.Description = value
	case FieldLanguage:
		f.Language = value
	case FieldVersion:
		f.Version = value
	case FieldContent:
		f.Content = value
	case FieldExtension:
		f.Extension = value
	}
}

// Input converts the fields into a create/update payload.
func (f Fields) Input() model.SnippetInput {
	return model.SnippetInput{
		Name:        f.Name,
		Language:    f.Language,
		Content:     f.Content,
		Extension:   f.Extension,
		Description: f.Description,
		Version:     f.Version,
	}
}

// Diff lists the fields whose values differ between a and b.
func Diff(a, b Fields) []Field {
	var out []Field
	for _, f := range AllFields {
		if a.Get(f) != b.Get(f) {
			out = append(out, f)
		}
	}
	return out
}
