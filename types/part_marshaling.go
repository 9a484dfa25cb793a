package types

import (
	"encoding/json"
	"fmt"
)

// partUnmarshalHelper mirrors Part without its UnmarshalJSON method so the
// union tag can be validated before the payload is accepted.
type partUnmarshalHelper struct {
	Type     PartType       `json:"type"`
	Text     *string        `json:"text,omitempty"`
	File     *FileContent   `json:"file,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON custom unmarshaler for Part that enforces the type tag and
// the presence of the matching payload field
func (p *Part) UnmarshalJSON(data []byte) error {
	var helper partUnmarshalHelper
	if err := json.Unmarshal(data, &helper); err != nil {
		return err
	}

	if !helper.Type.IsValid() {
		return fmt.Errorf("unknown part type %q", helper.Type)
	}

	switch helper.Type {
	case PartTypeText:
		if helper.Text == nil {
			return fmt.Errorf("text part is missing the text field")
		}
	case PartTypeFile:
		if helper.File == nil {
			return fmt.Errorf("file part is missing the file field")
		}
	case PartTypeData:
		if helper.Data == nil {
			return fmt.Errorf("data part is missing the data field")
		}
	}

	p.Type = helper.Type
	p.Text = helper.Text
	p.File = helper.File
	p.Data = helper.Data
	p.Metadata = helper.Metadata

	return nil
}

// messageUnmarshalHelper is a wrapper for Message that ensures Parts are properly unmarshaled
type messageUnmarshalHelper struct {
	Role     MessageRole       `json:"role"`
	Parts    []json.RawMessage `json:"parts"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// UnmarshalJSON custom unmarshaler for Message that properly handles typed Parts
func (m *Message) UnmarshalJSON(data []byte) error {
	var helper messageUnmarshalHelper
	if err := json.Unmarshal(data, &helper); err != nil {
		return err
	}

	parts := make([]Part, len(helper.Parts))
	for i, rawPart := range helper.Parts {
		part, err := UnmarshalPart(rawPart)
		if err != nil {
			return fmt.Errorf("failed to unmarshal part at index %d: %w", i, err)
		}
		parts[i] = part
	}

	m.Role = helper.Role
	m.Parts = parts
	m.Metadata = helper.Metadata

	return nil
}

// UnmarshalPart unmarshals a single Part from JSON with proper type handling
func UnmarshalPart(data []byte) (Part, error) {
	var part Part
	if err := json.Unmarshal(data, &part); err != nil {
		return Part{}, fmt.Errorf("failed to unmarshal Part: %w", err)
	}
	return part, nil
}

// UnmarshalParts is a utility function to unmarshal a slice of Parts with proper type handling
func UnmarshalParts(data []byte) ([]Part, error) {
	var rawParts []json.RawMessage
	if err := json.Unmarshal(data, &rawParts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw parts: %w", err)
	}

	parts := make([]Part, len(rawParts))
	for i, rawPart := range rawParts {
		part, err := UnmarshalPart(rawPart)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal part at index %d: %w", i, err)
		}
		parts[i] = part
	}

	return parts, nil
}

// CreateTextPart creates a Part with text content
func CreateTextPart(text string, metadata ...map[string]any) Part {
	part := Part{
		Type: PartTypeText,
		Text: &text,
	}
	if len(metadata) > 0 {
		part.Metadata = metadata[0]
	}
	return part
}

// CreateFilePart creates a Part with file content
func CreateFilePart(file FileContent, metadata ...map[string]any) Part {
	part := Part{
		Type: PartTypeFile,
		File: &file,
	}
	if len(metadata) > 0 {
		part.Metadata = metadata[0]
	}
	return part
}

// CreateDataPart creates a Part with structured data content
func CreateDataPart(data map[string]any, metadata ...map[string]any) Part {
	part := Part{
		Type: PartTypeData,
		Data: data,
	}
	if len(metadata) > 0 {
		part.Metadata = metadata[0]
	}
	return part
}
