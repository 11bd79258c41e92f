package modelGenerator

import (
	"fmt"
	"strings"
)

func publicAttribute(property string) string {

	// Split the string by underscores
	segments := strings.Split(property, "_")

	// Capitalize the first letter of each segment
	for i := range segments {
		if segments[i] == "" {
			continue
		}
		segments[i] = strings.ToUpper(segments[i][0:1]) + segments[i][1:]
	}

	// Join the segments back together
	result := strings.Join(segments, "")

	return result
}

func (g *Generator) ignoreProperty(name string) bool {
	for _, prefix := range g.Fields.Ignore.StartsWith {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, part := range g.Fields.Ignore.Contains {
		if strings.Contains(name, part) {
			return true
		}
	}
	for _, suffix := range g.Fields.Ignore.EndsWith {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	for _, exact := range g.Fields.Ignore.Equals {
		if name == exact {
			return true
		}
	}
	return false
}

func (g *Generator) propertyType(schema openAPISchema) string {
	goType := schema.goType()
	if swapped, ok := g.Fields.Swap[goType]; ok {
		goType = swapped
	}
	return goType
}

func (g *Generator) generateModelStruct(name string, definition openAPISchema) string {

	publicName := publicAttribute(name)
	structString := ""
	if definition.Description != "" {
		structString += fmt.Sprintf("// %s %s\n", publicName, definition.Description)
	}
	structString += fmt.Sprintf("type %s struct {", publicName)
	propertyKeys := sortedCaseInsensitiveStringKeys(definition.Properties)

	jsonSupport := ""
	fieldName := ""

	for _, propertyKey := range propertyKeys {
		if g.ignoreProperty(propertyKey) {
			continue
		}
		prop := definition.Properties[propertyKey]
		fieldName = propertyKey
		if g.Fields.Public {
			fieldName = publicAttribute(fieldName)
		}
		if g.Fields.Json.Tags {
			jsonSupport = propertyKey
			if g.Fields.Json.OmitEmpty {
				jsonSupport += ",omitempty"
			}
			jsonSupport = fmt.Sprintf("`json:\"%s\"`", jsonSupport)
		}
		pointer := ""
		if g.Fields.Pointers {
			pointer = "*"
		}
		structString += fmt.Sprintf("\n\t%s %s%s\t%s", fieldName, pointer, g.propertyType(prop), jsonSupport)
	}

	return structString + "\n}"
}

// generateEnumType renders a string-valued enum property as a named
// type with constants, using the x-ms-enum name when present.
func generateEnumType(owner, property string, schema openAPISchema) string {

	name := publicAttribute(owner) + publicAttribute(property)
	if schema.XMSEnum != nil && schema.XMSEnum.Name != "" {
		name = publicAttribute(schema.XMSEnum.Name)
	}

	goString := fmt.Sprintf(`type %s string

const (`, name)
	for _, value := range schema.Enum {
		goString += fmt.Sprintf("\n\t%s%s %s = \"%s\"", name, publicAttribute(value), name, value)
	}
	return goString + "\n)"
}

// enumsOf returns the enum-typed properties of a definition in a
// stable order.
func enumsOf(definition openAPISchema) []string {
	var names []string
	for name, prop := range definition.Properties {
		if prop.Type == "string" && len(prop.Enum) > 0 {
			names = append(names, name)
		}
	}
	return sortedCaseInsensitiveStringKeys(stringSet(names))
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}

// usesDates reports whether any kept property maps to the dates
// package, so the generated file only imports it when needed.
func (g *Generator) usesDates(doc openAPIDocument) bool {
	for _, definition := range doc.Definitions {
		for name, prop := range definition.Properties {
			if g.ignoreProperty(name) {
				continue
			}
			if strings.HasPrefix(g.propertyType(prop), "dates.") {
				return true
			}
		}
	}
	return false
}

func (g *Generator) generateCodeFromDocument(packageName string, doc openAPIDocument) map[string]string {

	code := make(map[string]string)

	modelCode := fmt.Sprintf("package %s\n", packageName)
	if g.usesDates(doc) {
		modelCode += `
import (
	"github.com/csmu-cenr/go-azure/dates"
)
`
	}

	definitionKeys := sortedCaseInsensitiveStringKeys(doc.Definitions)
	for _, definitionKey := range definitionKeys {
		definition := doc.Definitions[definitionKey]
		for _, enumProperty := range enumsOf(definition) {
			modelCode += "\n" + generateEnumType(definitionKey, enumProperty, definition.Properties[enumProperty]) + "\n"
		}
		modelCode += "\n" + g.generateModelStruct(definitionKey, definition) + "\n"
	}

	code[g.Package.Models] = modelCode
	return code
}

// generateFieldConstants renders one constant per wire-level property
// name, so callers can build $select style field lists without string
// literals.
func (g *Generator) generateFieldConstants(doc openAPIDocument) string {

	goString := fmt.Sprintf("package %s\n\nconst (", g.Package.FieldsPackageName)

	definitionKeys := sortedCaseInsensitiveStringKeys(doc.Definitions)
	for _, definitionKey := range definitionKeys {
		definition := doc.Definitions[definitionKey]
		publicName := publicAttribute(definitionKey)
		for _, propertyKey := range sortedCaseInsensitiveStringKeys(definition.Properties) {
			if g.ignoreProperty(propertyKey) {
				continue
			}
			goString += fmt.Sprintf("\n\t%s%s = \"%s\"", publicName, publicAttribute(propertyKey), propertyKey)
		}
	}

	return goString + "\n)\n"
}
