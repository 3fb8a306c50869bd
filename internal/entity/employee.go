package entity

import "strings"

// EmployeeRecord is the normalized shape extracted from one registration form.
// Every field is optional; an empty string means the field was not present in the document.
type EmployeeRecord struct {
	Empregador         string `json:"empregador,omitempty"`
	NumeroOrdem        string `json:"numero_ordem,omitempty"`
	Nome               string `json:"nome,omitempty"`
	EnderecoLogradouro string `json:"endereco_logradouro,omitempty"`
	EnderecoNumero     string `json:"endereco_numero,omitempty"`
	EnderecoBairro     string `json:"endereco_bairro,omitempty"`
	EnderecoCidade     string `json:"endereco_cidade,omitempty"`
	EnderecoUF         string `json:"endereco_uf,omitempty"`
	EnderecoCEP        string `json:"endereco_cep,omitempty"`
	FiliacaoPai        string `json:"filiacao_pai,omitempty"`
	FiliacaoMae        string `json:"filiacao_mae,omitempty"`
	DataNascimento     string `json:"data_nascimento,omitempty"` // DD/MM/AAAA
	Idade              string `json:"idade,omitempty"`
	Nacionalidade      string `json:"nacionalidade,omitempty"`
	EstadoCivil        string `json:"estado_civil,omitempty"`
	LocalNascimento    string `json:"local_nascimento,omitempty"`
	LocalNascimentoUF  string `json:"local_nascimento_uf,omitempty"`
	CTPS               string `json:"ctps,omitempty"`
	Reservista         string `json:"reservista,omitempty"`
	Categoria          string `json:"categoria,omitempty"`
	CPF                string `json:"cpf,omitempty"`
	RG                 string `json:"rg,omitempty"`
	TituloEleitor      string `json:"titulo_eleitor,omitempty"`
	PIS                string `json:"pis,omitempty"`
	DataAdmissao       string `json:"data_admissao,omitempty"` // DD/MM/AAAA
	Cargo              string `json:"cargo,omitempty"`
	Salario            string `json:"salario,omitempty"` // R$ 0,00
	CBO                string `json:"cbo,omitempty"`
	MatriculaESocial   string `json:"matricula_esocial,omitempty"`
	Email              string `json:"email,omitempty"`
	Telefone           string `json:"telefone,omitempty"`
}

// MissingRequired lists the completeness fields (nome, cpf) that came back empty.
// A non-empty result is a quality signal only, never a processing failure.
func (r EmployeeRecord) MissingRequired() []string {
	var missing []string
	if strings.TrimSpace(r.Nome) == "" {
		missing = append(missing, "nome")
	}
	if strings.TrimSpace(r.CPF) == "" {
		missing = append(missing, "cpf")
	}
	return missing
}
