package conversation

import (
	"bytes"
	"encoding/json"
	"text/template"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

const validationErrorTemplate = `invalid snapshot:
{{- range . }}
- {{ . }}
{{- end }}`

var validationErrorTmpl = template.Must(template.New("validation").Parse(validationErrorTemplate))

// ValidationError lists why a document is not a valid snapshot.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	var b bytes.Buffer
	if err := validationErrorTmpl.Execute(&b, e.Errors); err != nil {
		return "invalid snapshot"
	}
	return b.String()
}

// SnapshotSchema reflects the JSON schema of Snapshot.
func SnapshotSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(&Snapshot{})
	s.Version = draft07
	return s
}

// ValidateSnapshotJSON checks a JSON document against SnapshotSchema.
func ValidateSnapshotJSON(doc []byte) error {
	schema, err := json.Marshal(SnapshotSchema())
	if err != nil {
		return errors.Wrap(err, "could not marshal snapshot schema")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return errors.Wrap(err, "failed to validate snapshot")
	}

	if !result.Valid() {
		ret := &ValidationError{}
		for _, desc := range result.Errors() {
			ret.Errors = append(ret.Errors, desc.String())
		}
		return ret
	}

	return nil
}

// ParseSnapshotJSON validates and decodes a JSON snapshot.
func ParseSnapshotJSON(doc []byte) (Snapshot, error) {
	if err := ValidateSnapshotJSON(doc); err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(doc, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "could not decode snapshot")
	}
	return s, nil
}
