package summarize

import (
	"fmt"
	"strings"

	"github.com/valyala/fasttemplate"

	"audio-digest/internal/domain"
)

// DefaultMapTemplate asks for the main points of one transcript chunk.
const DefaultMapTemplate = `Analise este trecho da transcrição e extraia os pontos principais:

{text}

Pontos principais deste trecho:`

// DefaultCombineTemplate asks for the final three-section summary.
const DefaultCombineTemplate = `Com base nos resumos dos trechos abaixo, crie um resumo final estruturado:

{text}

Crie um resumo final com:
## 📋 Resumo Executivo
[Resumo geral em 2-3 parágrafos]

## 🔑 Pontos-Chave
1. [Ponto 1]
2. [Ponto 2]
3. [Ponto 3]
4. [Ponto 4]
5. [Ponto 5]

## 🎯 Conclusões e Ações
[Principais conclusões e próximos passos]

Resumo final:`

const textTag = "text"

// Prompt renders a template with a single {text} placeholder.
type Prompt struct {
	tpl *fasttemplate.Template
}

// ParsePrompt validates template and requires the {text} placeholder.
func ParsePrompt(name, template string) (Prompt, error) {
	if !strings.Contains(template, "{"+textTag+"}") {
		return Prompt{}, domain.ConfigError("summarizing", fmt.Sprintf("%s template must contain {%s}", name, textTag), nil)
	}
	tpl, err := fasttemplate.NewTemplate(template, "{", "}")
	if err != nil {
		return Prompt{}, domain.ConfigError("summarizing", fmt.Sprintf("invalid %s template", name), err)
	}
	return Prompt{tpl: tpl}, nil
}

// Render substitutes text into the template.
func (p Prompt) Render(text string) string {
	return p.tpl.ExecuteString(map[string]interface{}{textTag: text})
}
