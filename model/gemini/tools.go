//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/robraux/autogen/model"
)

// toolsToGemini converts function tools into one Gemini tool holding all
// function declarations.
func toolsToGemini(tools []model.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
		}
		if len(t.Function.Parameters) > 0 {
			decl.Parameters = schemaFromJSON(t.Function.Parameters)
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// schemaFromJSON converts a JSON schema object into a Gemini schema. Unknown
// types fall back to string.
func schemaFromJSON(m map[string]any) *genai.Schema {
	schema := &genai.Schema{}
	typ, _ := m["type"].(string)
	// ["string", "null"] style nullable types.
	if list, ok := m["type"].([]any); ok {
		for _, v := range list {
			s, _ := v.(string)
			if s == "null" {
				schema.Nullable = genai.Ptr(true)
			} else if typ == "" {
				typ = s
			}
		}
	}
	switch typ {
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		if items, ok := m["items"].(map[string]any); ok {
			schema.Items = schemaFromJSON(items)
		}
	case "object":
		schema.Type = genai.TypeObject
		if props, ok := m["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					schema.Properties[name] = schemaFromJSON(pm)
				}
			}
		}
		schema.Required = stringList(m["required"])
	default:
		schema.Type = genai.TypeString
	}
	schema.Description, _ = m["description"].(string)
	schema.Format, _ = m["format"].(string)
	if enum, ok := m["enum"].([]any); ok {
		for _, v := range enum {
			schema.Enum = append(schema.Enum, fmt.Sprintf("%v", v))
		}
	}
	if n, ok := m["nullable"].(bool); ok {
		schema.Nullable = genai.Ptr(n)
	}
	return schema
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// toolConfig maps tool_choice onto Gemini function calling modes.
func toolConfig(choice *model.ToolChoice) *genai.ToolConfig {
	if choice == nil {
		return nil
	}
	fc := &genai.FunctionCallingConfig{}
	switch {
	case choice.Function != "":
		fc.Mode = genai.FunctionCallingConfigModeAny
		fc.AllowedFunctionNames = []string{choice.Function}
	case choice.Mode == model.ToolChoiceNone:
		fc.Mode = genai.FunctionCallingConfigModeNone
	case choice.Mode == model.ToolChoiceRequired:
		fc.Mode = genai.FunctionCallingConfigModeAny
	default:
		fc.Mode = genai.FunctionCallingConfigModeAuto
	}
	return &genai.ToolConfig{FunctionCallingConfig: fc}
}
