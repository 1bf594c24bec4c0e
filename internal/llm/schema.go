package llm

import (
	"maps"
	"slices"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// object builds a strict object schema. Strict structured output needs every
// property required and no additional properties, so the optional
// source_file comes back as an empty string when unknown.
func object(props map[string]jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           props,
		Required:             slices.Sorted(maps.Keys(props)),
		AdditionalProperties: false,
	}
}

func itemList(item jsonschema.Definition) jsonschema.Definition {
	return object(map[string]jsonschema.Definition{
		"items": {Type: jsonschema.Array, Items: &item},
	})
}

var sourceFileProp = jsonschema.Definition{
	Type:        jsonschema.String,
	Description: `"<document name> (Pág. <page>)" or empty`,
}

var testSchema = itemList(object(map[string]jsonschema.Definition{
	"question":        {Type: jsonschema.String},
	"options":         {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
	"correct_indices": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.Integer}},
	"explanation":     {Type: jsonschema.String},
	"source_quote":    {Type: jsonschema.String},
	"source_file":     sourceFileProp,
}))

var clozeSchema = itemList(object(map[string]jsonschema.Definition{
	"full_text":    {Type: jsonschema.String},
	"hidden_words": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
	"source_file":  sourceFileProp,
}))

var openSchema = itemList(object(map[string]jsonschema.Definition{
	"question":     {Type: jsonschema.String},
	"model_answer": {Type: jsonschema.String},
	"source_file":  sourceFileProp,
}))

var evalSchema = object(map[string]jsonschema.Definition{
	"score":    {Type: jsonschema.Integer, Description: "1 if the answer is correct, 0 otherwise"},
	"feedback": {Type: jsonschema.String},
})
