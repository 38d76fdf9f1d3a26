package generation

import (
	"errors"
	"strings"
)

// DefaultTemplate is the instruction prompt sent to the model, with the
// assembled context and the user's question substituted in.
const DefaultTemplate = "Please answer the questions based on the following content and your own judgment:\n{context}\nQuestion: {question}"

// PromptTemplate renders the two named slots {context} and {question}.
type PromptTemplate struct {
	text string
}

// NewTemplate validates the template. An empty string selects
// DefaultTemplate; a template missing either slot is rejected.
func NewTemplate(text string) (PromptTemplate, error) {
	if text == "" {
		text = DefaultTemplate
	}
	if !strings.Contains(text, "{context}") || !strings.Contains(text, "{question}") {
		return PromptTemplate{}, errors.New("prompt template must contain {context} and {question}")
	}
	return PromptTemplate{text: text}, nil
}

// Render fills both slots. Replacement is a single pass over the
// template text; substituted content is not rescanned.
func (t PromptTemplate) Render(contextText, question string) string {
	r := strings.NewReplacer("{context}", contextText, "{question}", question)
	return r.Replace(t.text)
}
