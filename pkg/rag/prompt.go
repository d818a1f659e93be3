package rag

import (
	"strings"
	"text/template"
)

const contextSeparator = "\n\n---\n\n"

// promptText is sent as the content of a single user-role message, so it carries no
// "Human:" turn prefix of its own.
const promptText = `
Use this context to answer the question, but respond naturally without referencing the context:

{{.Context}}

---

Question: {{.Question}}
`

var promptTemplate = template.Must(template.New("prompt").Parse(promptText))

// BuildPrompt joins passages with a horizontal rule and fills in the prompt template.
func BuildPrompt(passages []string, question string) (string, error) {
	var sb strings.Builder
	err := promptTemplate.Execute(&sb, struct {
		Context  string
		Question string
	}{
		Context:  strings.Join(passages, contextSeparator),
		Question: question,
	})
	return sb.String(), err
}
