package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/qamqor-ai/qamqor/internal/conversation"
)

// deviceInfoSchema constrains the optional device descriptor attached at
// session creation. Extra fields are allowed so clients can evolve without a
// server release; the named fields just have to be strings when present.
const deviceInfoSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"platform":    {"type": "string"},
		"os_version":  {"type": "string"},
		"app_version": {"type": "string"},
		"model":       {"type": "string"}
	}
}`

var compiledDeviceInfoSchema = mustCompileDeviceInfoSchema()

func mustCompileDeviceInfoSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("device_info.json", strings.NewReader(deviceInfoSchema)); err != nil {
		panic("pipeline: add device info schema: " + err.Error())
	}
	schema, err := compiler.Compile("device_info.json")
	if err != nil {
		panic("pipeline: compile device info schema: " + err.Error())
	}
	return schema
}

// ValidateDeviceInfo checks that raw is a JSON object matching the device
// info schema. Failures wrap [conversation.ErrValidation].
func ValidateDeviceInfo(raw string) error {
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("device_info is not valid JSON: %w", conversation.ErrValidation)
	}
	if err := compiledDeviceInfoSchema.Validate(payload); err != nil {
		return fmt.Errorf("device_info rejected by schema: %v: %w", err, conversation.ErrValidation)
	}
	return nil
}
