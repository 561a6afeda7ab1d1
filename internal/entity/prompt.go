package entity

// PromptSubcategoryType tags prompt-subcategory documents in the store.
const PromptSubcategoryType = "prompt_subcategory"

// PromptSubcategory is a prompt-store document: a named set of analysis
// prompts grouped under a category. The pipeline only reads these; the
// CRUD surface that manages them lives outside this repository.
type PromptSubcategory struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	CategoryID string            `json:"category_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Prompts    map[string]string `json:"prompts"`
}
