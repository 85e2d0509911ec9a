// internal/decision/schema.go
package decision

// Property describes one parameter of the computer tool in a provider-neutral way.
type Property struct {
	Type        string
	Description string
	Enum        []string
	Items       *Property
	MinItems    int
	MaxItems    int
	Minimum     *float64
	Maximum     *float64
}

// Schema is the declared contract of the computer tool.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
	// Order lists property names in documentation order.
	Order []string
}

func ptr(f float64) *float64 { return &f }

func coordinate(desc string) Property {
	return Property{
		Type:        "array",
		Description: desc,
		Items:       &Property{Type: "number", Minimum: ptr(0), Maximum: ptr(CanvasSize)},
		MinItems:    2,
		MaxItems:    2,
	}
}

// ToolSchema returns the computer tool declaration offered to the model.
func ToolSchema() Schema {
	kinds := make([]string, len(Kinds))
	for i, k := range Kinds {
		kinds[i] = string(k)
	}

	props := map[string]Property{
		FieldAction:          {Type: "string", Description: "The action to perform.", Enum: kinds},
		FieldCoordinate:      coordinate("[x, y] on a 1000x1000 grid covering the screen. Required for click and move."),
		FieldStartCoordinate: coordinate("[x, y] where a drag starts."),
		FieldEndCoordinate:   coordinate("[x, y] where a drag ends."),
		FieldButton:          {Type: "string", Description: "Mouse button for click.", Enum: []string{string(ButtonLeft), string(ButtonRight), string(ButtonMiddle)}},
		FieldMode:            {Type: "string", Description: "single or double click.", Enum: []string{string(ModeSingle), string(ModeDouble)}},
		FieldText:            {Type: "string", Description: "Text to type, exactly as it should appear."},
		FieldKeys: {
			Type:        "array",
			Description: "Key chord for key_press: modifiers first, then one key, e.g. [\"ctrl\", \"c\"] or [\"enter\"].",
			Items:       &Property{Type: "string"},
			MinItems:    1,
		},
		FieldDirection:  {Type: "string", Description: "Scroll direction.", Enum: []string{string(DirectionUp), string(DirectionDown), string(DirectionLeft), string(DirectionRight)}},
		FieldMagnitude:  {Type: "integer", Description: "Number of scroll steps.", Minimum: ptr(1)},
		FieldDurationMS: {Type: "integer", Description: "How long to wait, in milliseconds.", Minimum: ptr(1)},
		FieldStatus:     {Type: "string", Description: "Outcome reported by terminate.", Enum: []string{string(StatusSuccess), string(StatusFailure)}},
		FieldMessage:    {Type: "string", Description: "Summary reported by terminate."},
		FieldRationale:  {Type: "string", Description: "One sentence explaining why this action was chosen."},
	}

	return Schema{
		Name:        ToolName,
		Description: "Control the computer by performing one mouse or keyboard action on the current screen, waiting, or ending the task.",
		Properties:  props,
		Required:    []string{FieldAction},
		Order: []string{
			FieldAction, FieldCoordinate, FieldStartCoordinate, FieldEndCoordinate, FieldButton, FieldMode,
			FieldText, FieldKeys, FieldDirection, FieldMagnitude, FieldDurationMS, FieldStatus, FieldMessage, FieldRationale,
		},
	}
}

// JSONSchema renders a property as a JSON Schema fragment.
func (p Property) JSONSchema() map[string]interface{} {
	out := map[string]interface{}{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = p.Items.JSONSchema()
	}
	if p.MinItems > 0 {
		out["minItems"] = p.MinItems
	}
	if p.MaxItems > 0 {
		out["maxItems"] = p.MaxItems
	}
	if p.Minimum != nil {
		out["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		out["maximum"] = *p.Maximum
	}
	return out
}

// JSONSchema renders the parameters object of the tool as JSON Schema.
func (s Schema) JSONSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = p.JSONSchema()
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   s.Required,
	}
}
