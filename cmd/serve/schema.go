package serve

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dREST/lib/handler"
	"github.com/ValentinKolb/dREST/lib/model"
)

// --------------------------------------------------------------------------
// Schema File
// --------------------------------------------------------------------------

// schemaFile is the JSON shape of a type definition file. Property
// types use the wire type tags (e.g. "StringProperty",
// "ListProperty:IntegerProperty").
type schemaFile struct {
	Types []schemaType `json:"types"`
}

type schemaType struct {
	Name       string           `json:"name"`
	Doc        string           `json:"doc"`
	Dynamic    bool             `json:"dynamic"`
	Operations []string         `json:"operations"`
	Properties []schemaProperty `json:"properties"`
}

type schemaProperty struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Indexed     bool     `json:"indexed"`
	Default     *string  `json:"default"`
	Choices     []string `json:"choices"`
	VerboseName string   `json:"verbose_name"`
}

var operationsByName = map[string]model.Operation{
	"get":        model.OpGet,
	"query":      model.OpQuery,
	"create":     model.OpCreate,
	"update":     model.OpUpdate,
	"replace":    model.OpReplace,
	"delete":     model.OpDelete,
	"bulkdelete": model.OpBulkDelete,
	"upload":     model.OpUpload,
	"all":        model.OpAll,
}

// loadSchemaFile reads a type definition file and builds the registry
// the server will expose.
func loadSchemaFile(path string) (*model.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return parseSchema(data)
}

// parseSchema builds a registry from the JSON content of a schema file.
func parseSchema(data []byte) (*model.Registry, error) {
	var file schemaFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("malformed schema file: %w", err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("schema file declares no types")
	}

	registry := model.NewRegistry()
	for _, st := range file.Types {
		def, err := buildTypeDef(st)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", st.Name, err)
		}

		ops, err := parseOperations(st.Operations)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", st.Name, err)
		}

		if err := registry.Register(st.Name, def, ops); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildTypeDef(st schemaType) (*model.TypeDef, error) {
	def := &model.TypeDef{
		Name:    st.Name,
		Doc:     st.Doc,
		Dynamic: st.Dynamic,
	}

	for _, sp := range st.Properties {
		propType, elemType, err := model.ParsePropertyType(sp.Type)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", sp.Name, err)
		}

		prop := model.PropertyDef{
			Name:        sp.Name,
			Type:        propType,
			Elem:        elemType,
			Required:    sp.Required,
			Indexed:     sp.Indexed,
			Choices:     sp.Choices,
			VerboseName: sp.VerboseName,
		}

		// defaults are given in wire string form and coerced by the
		// property's own handler
		if sp.Default != nil {
			v, err := handler.ForProperty(&prop).ValueFromString(*sp.Default)
			if err != nil {
				return nil, fmt.Errorf("property %s: invalid default %q: %w", sp.Name, *sp.Default, err)
			}
			prop.Default = &v
		}

		def.Props = append(def.Props, prop)
	}
	return def, nil
}

// parseOperations folds operation names into a flag set. An empty list
// enables all operations.
func parseOperations(names []string) (model.Operation, error) {
	if len(names) == 0 {
		return model.OpAll, nil
	}
	var ops model.Operation
	for _, name := range names {
		op, ok := operationsByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown operation %q", name)
		}
		ops |= op
	}
	return ops, nil
}
