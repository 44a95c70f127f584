package llm

// SearchTool describes the web search function offered to the model.
type SearchTool struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	QueryParam       string `yaml:"query_param"`
	QueryDescription string `yaml:"query_description"`
}

// DefaultSearchTool returns the web_search declaration.
func DefaultSearchTool() SearchTool {
	return SearchTool{
		Name:             "web_search",
		Description:      "Search the web for current information, news, facts, or real-time data",
		QueryParam:       "query",
		QueryDescription: "The search query to find information",
	}
}

// withDefaults fills empty fields from DefaultSearchTool.
func (t SearchTool) withDefaults() SearchTool {
	d := DefaultSearchTool()
	if t.Name == "" {
		t.Name = d.Name
	}
	if t.Description == "" {
		t.Description = d.Description
	}
	if t.QueryParam == "" {
		t.QueryParam = d.QueryParam
	}
	if t.QueryDescription == "" {
		t.QueryDescription = d.QueryDescription
	}
	return t
}

// Definition returns the provider-neutral function declaration.
func (t SearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				t.QueryParam: map[string]any{
					"type":        "string",
					"description": t.QueryDescription,
				},
			},
			"required": []string{t.QueryParam},
		},
	}
}
