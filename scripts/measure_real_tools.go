package main

import (
	"encoding/json"
	"fmt"
	"log"

	"jarvis/internal/prompts"
	"jarvis/internal/tooling"
)

func main() {
	// The collaborator is never invoked; only its definitions are measured.
	bin := tooling.NewCollaborator("", nil)
	registry := tooling.NewRegistry(tooling.DefaultTools(bin)...)

	// Get tool definitions as they would be sent to the model
	definitions := registry.Definitions()

	data, err := json.Marshal(definitions)
	if err != nil {
		log.Fatalf("Failed to marshal tool definitions: %v", err)
	}
	system := prompts.Combine("")

	fmt.Printf("Terminal Jarvis request overhead:\n")
	fmt.Printf("  Tools: %d\n", len(definitions))
	fmt.Printf("  Tool JSON size: %d bytes (~%d tokens)\n", len(data), len(data)/4)
	fmt.Printf("  System prompt: %d bytes (~%d tokens)\n", len(system), len(system)/4)
	fmt.Println()

	fmt.Println("Size breakdown by tool:")
	for _, def := range definitions {
		defData, _ := json.Marshal(def)
		fmt.Printf("  %-16s: %5d bytes\n", def.Function.Name, len(defData))
	}
}
