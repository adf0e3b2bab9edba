package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/contextlang/pkg/config"
	"github.com/grovetools/contextlang/pkg/llm"
	"github.com/invopop/jsonschema"
)

const schemaDir = "schema"

func main() {
	resp := llm.EnvelopeSchema()
	resp.Title = "contextlang response"
	resp.Description = "Object every generation backend must return."

	if err := os.MkdirAll(schemaDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	for name, schema := range map[string]*jsonschema.Schema{
		"contextlang.schema.json": config.Schema(),
		"response.schema.json":    resp,
	} {
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			log.Fatalf("Error marshaling %s: %v", name, err)
		}
		path := filepath.Join(schemaDir, name)
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			log.Fatalf("Error writing schema file: %v", err)
		}
		log.Printf("Successfully generated schema at %s", path)
	}
}
