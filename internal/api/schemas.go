package api

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/remarkbridge/internal/hook"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaKeys maps (provider, event type) to the embedded schema validating
// that payload shape. Event types without an entry are passed through
// unvalidated; the normalizer classifies them as unsupported.
var schemaKeys = map[string]map[string]string{
	"github": {
		"push":                        "github_push.json",
		"pull_request_review_comment": "github_review_comment.json",
		"pull_request_review_thread":  "github_review_thread.json",
		"pull_request":                "github_pull_request.json",
	},
	"gitlab": {
		"Push Hook":          "gitlab_push.json",
		"Note Hook":          "gitlab_note.json",
		"Merge Request Hook": "gitlab_merge_request.json",
	},
}

// schemaSet holds the compiled payload schemas.
type schemaSet struct {
	compiled map[string]*jsonschema.Schema
}

func loadSchemas() (*schemaSet, error) {
	compiler := jsonschema.NewCompiler()

	names, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		raw, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
	}

	set := &schemaSet{compiled: make(map[string]*jsonschema.Schema)}
	for _, byType := range schemaKeys {
		for _, file := range byType {
			if _, ok := set.compiled[file]; ok {
				continue
			}
			schema, err := compiler.Compile("schemas/" + file)
			if err != nil {
				return nil, fmt.Errorf("failed to compile schema %s: %w", file, err)
			}
			set.compiled[file] = schema
		}
	}
	return set, nil
}

// Validate checks the payload shape for a supported (provider, event type)
// pair. A violation is a precondition failure (HTTP 412).
func (s *schemaSet) Validate(provider, eventType string, body []byte) error {
	byType, ok := schemaKeys[provider]
	if !ok {
		return nil
	}
	file, ok := byType[eventType]
	if !ok {
		return nil
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &hook.PreconditionError{Reason: fmt.Sprintf("payload is not valid JSON: %v", err)}
	}
	if err := s.compiled[file].Validate(instance); err != nil {
		return &hook.PreconditionError{Reason: fmt.Sprintf("payload shape violates %s schema: %v", eventType, err)}
	}
	return nil
}
