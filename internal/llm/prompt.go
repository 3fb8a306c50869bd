package llm

import (
	"strings"
)

// BuildInstruction is the fixed natural-language instruction sent alongside every document.
func BuildInstruction() string {
	parts := []string{
		"Analise esta ficha de registro de empregado. Extraia TODOS os dados possíveis mapeando para os campos do JSON.",
		"",
		"Atenção aos detalhes:",
		"- Separe o endereço em logradouro, número, bairro, cidade, UF e CEP.",
		"- Separe filiação pai e mãe.",
		"- Busque por 'Matrícula eSocial' ou apenas 'Matrícula'.",
		"- Busque por informações de contato como 'Email' e 'Telefone'.",
		"- Se o campo for manuscrito, faça a melhor transcrição possível.",
		"- Normalize datas para DD/MM/AAAA.",
		"- Normalize valores monetários para R$ 0,00.",
		"",
		"Se um campo não existir no documento, deixe vazio.",
	}
	return strings.Join(parts, "\n")
}

// BuildSystemPrompt is used by providers without native response schemas: the schema is
// described in the prompt and enforced locally after the call.
func BuildSystemPrompt() string {
	var keys []string
	for _, f := range EmployeeFields {
		keys = append(keys, f.Key+" ("+f.Description+")")
	}
	parts := []string{
		"Você é um extrator de fichas de registro de empregados. Retorne SOMENTE um objeto JSON.",
		"Todas as chaves são strings. Chaves permitidas: " + strings.Join(keys, "; ") + ".",
		"Sempre inclua 'nome' e 'cpf', mesmo que vazios.",
		"Nunca retorne null; use string vazia para campos ausentes.",
	}
	return strings.Join(parts, " ")
}
