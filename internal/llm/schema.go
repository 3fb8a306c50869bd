package llm

// FieldSpec names one extracted field and the description given to the model.
type FieldSpec struct {
	Key         string
	Description string
}

// EmployeeFields lists every field of entity.EmployeeRecord in form order.
var EmployeeFields = []FieldSpec{
	{"empregador", "Nome do Empregador ou Empresa"},
	{"numero_ordem", "Número de Ordem ou Matrícula Interna"},
	{"nome", "Nome completo do empregado"},
	{"endereco_logradouro", "Endereço (Rua, Av, Logradouro)"},
	{"endereco_numero", "Número do endereço"},
	{"endereco_bairro", "Bairro"},
	{"endereco_cidade", "Cidade"},
	{"endereco_uf", "Estado (UF) do endereço"},
	{"endereco_cep", "CEP"},
	{"filiacao_pai", "Nome do Pai (Filiação)"},
	{"filiacao_mae", "Nome da Mãe (Filiação)"},
	{"data_nascimento", "Data de Nascimento (DD/MM/AAAA)"},
	{"idade", "Idade"},
	{"nacionalidade", "Nacionalidade"},
	{"estado_civil", "Estado Civil"},
	{"local_nascimento", "Local de Nascimento (Cidade)"},
	{"local_nascimento_uf", "UF do Local de Nascimento"},
	{"ctps", "CTPS (Número e Série)"},
	{"reservista", "Carteira de Reservista"},
	{"categoria", "Categoria (Reservista ou CNH)"},
	{"cpf", "CPF"},
	{"rg", "RG"},
	{"titulo_eleitor", "Título de Eleitor"},
	{"pis", "PIS/PASEP"},
	{"data_admissao", "Data de Admissão"},
	{"cargo", "Cargo"},
	{"salario", "Salário"},
	{"cbo", "CBO"},
	{"matricula_esocial", "Matrícula eSocial"},
	{"email", "Endereço de Email"},
	{"telefone", "Telefone ou Celular de contato"},
}

// RequiredFields must be emitted by the model; they may still be empty strings.
var RequiredFields = []string{"nome", "cpf"}

// BuildEmployeeJSONSchema returns a JSON-Schema (draft 2020-12 subset) used to validate model output.
// Nothing is required locally: an absent field is "not in the document", not an error.
func BuildEmployeeJSONSchema() map[string]any {
	props := make(map[string]any, len(EmployeeFields))
	for _, f := range EmployeeFields {
		props[f.Key] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// BuildGeminiResponseSchema returns the OpenAPI-subset schema Gemini accepts as responseSchema.
func BuildGeminiResponseSchema() map[string]any {
	props := make(map[string]any, len(EmployeeFields))
	ordering := make([]string, 0, len(EmployeeFields))
	for _, f := range EmployeeFields {
		props[f.Key] = map[string]any{"type": "STRING", "description": f.Description}
		ordering = append(ordering, f.Key)
	}
	return map[string]any{
		"type":             "OBJECT",
		"properties":       props,
		"required":         RequiredFields,
		"propertyOrdering": ordering,
	}
}

func fieldKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(EmployeeFields))
	for _, f := range EmployeeFields {
		keys[f.Key] = struct{}{}
	}
	return keys
}
