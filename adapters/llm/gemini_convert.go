package llm

import (
	"google.golang.org/genai"

	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// convertHistoryToGemini converts conversation turns to Gemini format
func convertHistoryToGemini(turns []entities.ConversationTurn) []*genai.Content {
	var contents []*genai.Content

	for _, turn := range turns {
		var role genai.Role
		switch turn.Role {
		case entities.MessageRoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}

		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	return contents
}

func toGeminiDeclarations(specs []repositories.ToolSpec) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  toGeminiSchema(spec.Parameters),
		})
	}
	return declarations
}

// toGeminiSchema converts a JSON schema map into a Gemini schema. Unknown
// keywords are ignored.
func toGeminiSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		out.Type = geminiType(t)
	}
	if d, ok := schema["description"].(string); ok {
		out.Description = d
	}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if child, ok := raw.(map[string]interface{}); ok {
				out.Properties[name] = toGeminiSchema(child)
			}
		}
	}

	out.Required = stringList(schema["required"])
	out.Enum = stringList(schema["enum"])

	if items, ok := schema["items"].(map[string]interface{}); ok {
		out.Items = toGeminiSchema(items)
	}

	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
