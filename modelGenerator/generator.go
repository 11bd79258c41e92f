package modelGenerator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type ModelGeneratorError struct {
	Function  string
	Attempted string
	Detail    interface{}
}

func (e ModelGeneratorError) Error() string {
	bytes, _ := json.Marshal(e)
	return string(bytes)
}

type Generator struct {
	// SpecPath is the OpenAPI document to generate from, either a
	// file path or an http(s) URL.
	SpecPath string `json:"specPath"`
	Package  struct {
		CreateDirectoryIfMissing bool   `json:"createDirectoryIfMissing"`
		Directory                string `json:"directory"`
		Models                   string `json:"models"`
		FieldsConstants          string `json:"fieldsConstants"`
		FieldsPackageName        string
	} `json:"package"`
	Fields struct {
		Public   bool              `json:"public"` // Change a_field__name__ to AFieldName
		Pointers bool              `json:"pointers"`
		Swap     map[string]string `json:"swap"`
		Json     struct {
			Tags      bool `json:"tags"`
			OmitEmpty bool `json:"omitempty"`
		} `json:"json"`
		Ignore struct {
			StartsWith []string `json:"startsWith"`
			Contains   []string `json:"contains"`
			EndsWith   []string `json:"endsWith"`
			Equals     []string `json:"equals"`
		} `json:"ignore"`
	} `json:"fields"`
}

func New(path string) (Generator, error) {

	function := "New Generator"
	var generator Generator

	data, err := os.ReadFile(path) // just pass the file name
	if err != nil {
		e := ModelGeneratorError{
			Attempted: fmt.Sprintf("Reading file: %s", path),
			Function:  function,
			Detail:    err}
		return generator, e
	}

	err = json.Unmarshal(data, &generator)
	if err != nil {
		e := ModelGeneratorError{
			Attempted: fmt.Sprintf("Unmarshalling: %s", string(data)),
			Function:  function,
			Detail:    err}
		return generator, e
	}

	return generator, nil
}

func (g Generator) GenerateCode() error {

	dirPath, err := filepath.Abs(g.Package.Directory)
	if err != nil {
		return err
	}

	_, err = os.Stat(dirPath)
	if os.IsNotExist(err) {
		fmt.Printf("%s.\n", err.Error())
		if g.Package.CreateDirectoryIfMissing {
			fmt.Printf("Creating %s.\n", dirPath)
			err := mkdirp(dirPath, 0755)
			if err != nil {
				fmt.Printf("%s does not exist. %s.", dirPath, err.Error())
				return err
			}
		} else {
			return err
		}
	}

	doc, err := loadDocument(g.SpecPath)
	if err != nil {
		return err
	}

	packageName := filepath.Base(dirPath)
	code := g.generateCodeFromDocument(packageName, doc)
	for fileName, contents := range code {
		filePath := filepath.Join(dirPath, fileName)
		err = os.WriteFile(filePath, []byte(contents), 0644)
		if err != nil {
			return err
		}
	}

	if g.Package.FieldsConstants == "" {
		return nil
	}

	fieldsPath, err := filepath.Abs(g.Package.FieldsConstants)
	if err != nil {
		return err
	}
	fieldsDir := filepath.Dir(fieldsPath)
	_, err = os.Stat(fieldsDir)
	if os.IsNotExist(err) {
		fmt.Printf("%s.\n", err.Error())
		if g.Package.CreateDirectoryIfMissing {
			fmt.Printf("Creating %s.\n", fieldsDir)
			err := mkdirp(fieldsDir, 0755)
			if err != nil {
				fmt.Printf("%s does not exist. %s.", fieldsDir, err.Error())
				return err
			}
		} else {
			return err
		}
	}
	g.Package.FieldsPackageName = filepath.Base(fieldsDir)
	contents := g.generateFieldConstants(doc)
	return os.WriteFile(fieldsPath, []byte(contents), 0644)
}

// mkdirp creates path and any missing parents, like mkdir -p.
func mkdirp(path string, perm os.FileMode) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, perm)
	}
	return nil
}
