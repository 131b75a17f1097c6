package rag

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/ogsenpai/mind/core/memory"
)

// generateTemplate is the context-augmented prompt sent to the model: the
// retrieved memories first, the literal input second, the instruction last.
const generateTemplate = `Context:
{{- range .Memories }}

[{{ .Kind }}] {{ .Content.Text | trim }}
{{- end }}

Current Input: {{ .Input }}

Based on the above context and the current input, provide a relevant and informed response.`

func renderPrompt(input string, memories []*memory.Entry) (string, error) {
	tmpl, err := template.New("generate").Funcs(sprig.FuncMap()).Parse(generateTemplate)
	if err != nil {
		return "", err
	}

	prompt := bytes.NewBuffer([]byte{})
	err = tmpl.Execute(prompt, struct {
		Input    string
		Memories []*memory.Entry
	}{
		Input:    input,
		Memories: memories,
	})
	if err != nil {
		return "", err
	}
	return prompt.String(), nil
}
