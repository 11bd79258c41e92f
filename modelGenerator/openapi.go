package modelGenerator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// openAPIDocument is the slice of an OpenAPI 2.0 document the
// generator cares about: named definitions and their properties.
type openAPIDocument struct {
	Swagger     string                   `json:"swagger"`
	Info        openAPIInfo              `json:"info"`
	Definitions map[string]openAPISchema `json:"definitions"`
}

type openAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

type openAPISchema struct {
	Type                 string                   `json:"type"`
	Format               string                   `json:"format"`
	Description          string                   `json:"description"`
	Ref                  string                   `json:"$ref"`
	Properties           map[string]openAPISchema `json:"properties"`
	Items                *openAPISchema           `json:"items"`
	Required             []string                 `json:"required"`
	Enum                 []string                 `json:"enum"`
	XMSEnum              *xmsEnum                 `json:"x-ms-enum"`
	ReadOnly             bool                     `json:"readOnly"`
	AdditionalProperties *openAPISchema           `json:"additionalProperties"`
}

type xmsEnum struct {
	Name          string `json:"name"`
	ModelAsString bool   `json:"modelAsString"`
}

func loadDocument(specPath string) (openAPIDocument, error) {

	function := "loadDocument"
	var doc openAPIDocument

	var data []byte
	var err error
	if strings.HasPrefix(specPath, "http://") || strings.HasPrefix(specPath, "https://") {
		resp, httpErr := http.Get(specPath)
		if httpErr != nil {
			err = httpErr
		} else {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				err = fmt.Errorf("unexpected status %d", resp.StatusCode)
			} else {
				data, err = io.ReadAll(resp.Body)
			}
		}
	} else {
		data, err = os.ReadFile(specPath)
	}
	if err != nil {
		return doc, ModelGeneratorError{
			Attempted: fmt.Sprintf("Loading spec: %s", specPath),
			Function:  function,
			Detail:    err}
	}

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return doc, ModelGeneratorError{
			Attempted: fmt.Sprintf("Unmarshalling spec: %s", specPath),
			Function:  function,
			Detail:    err}
	}
	if len(doc.Definitions) == 0 {
		return doc, ModelGeneratorError{
			Attempted: fmt.Sprintf("Reading definitions from: %s", specPath),
			Function:  function,
			Detail:    "document has no definitions"}
	}

	return doc, nil
}

// refName extracts Label from #/definitions/Label.
func refName(ref string) string {
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}

// goType maps an OpenAPI property schema to a Go type. Formats that
// carry wire-specific time encodings map to the dates package.
func (s openAPISchema) goType() string {
	if s.Ref != "" {
		return publicAttribute(refName(s.Ref))
	}
	switch s.Type {
	case "string":
		switch s.Format {
		case "date-time":
			return "dates.RFC3339"
		case "date-time-rfc1123":
			return "dates.RFC1123"
		case "byte":
			return "[]byte"
		default:
			return "string"
		}
	case "integer":
		switch s.Format {
		case "unixtime":
			return "dates.Unix"
		case "int32":
			return "int32"
		default:
			return "int64"
		}
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "array":
		if s.Items == nil {
			return "[]interface{}"
		}
		return "[]" + s.Items.goType()
	case "object":
		if s.AdditionalProperties != nil {
			return "map[string]" + s.AdditionalProperties.goType()
		}
		return "map[string]interface{}"
	default:
		return "interface{}"
	}
}
