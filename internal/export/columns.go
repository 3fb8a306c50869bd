package export

import (
	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
)

// Column is one spreadsheet column and the record field it reads.
type Column struct {
	Header string
	Width  float64
	Value  func(r entity.EmployeeRecord) string
}

// Columns is the fixed export layout. idade, categoria and cargo are extracted but not exported.
var Columns = []Column{
	{"Empresa", 28, func(r entity.EmployeeRecord) string { return r.Empregador }},
	{"Matricula", 12, func(r entity.EmployeeRecord) string { return r.NumeroOrdem }},
	{"Nome", 32, func(r entity.EmployeeRecord) string { return r.Nome }},
	{"Endereço", 32, func(r entity.EmployeeRecord) string { return r.EnderecoLogradouro }},
	{"Nº", 8, func(r entity.EmployeeRecord) string { return r.EnderecoNumero }},
	{"Bairro", 18, func(r entity.EmployeeRecord) string { return r.EnderecoBairro }},
	{"Cidade", 18, func(r entity.EmployeeRecord) string { return r.EnderecoCidade }},
	{"UF", 6, func(r entity.EmployeeRecord) string { return r.EnderecoUF }},
	{"CEP", 11, func(r entity.EmployeeRecord) string { return r.EnderecoCEP }},
	{"Pai", 28, func(r entity.EmployeeRecord) string { return r.FiliacaoPai }},
	{"Mãe", 28, func(r entity.EmployeeRecord) string { return r.FiliacaoMae }},
	{"Data Nasc", 12, func(r entity.EmployeeRecord) string { return r.DataNascimento }},
	{"Nacionalidade", 14, func(r entity.EmployeeRecord) string { return r.Nacionalidade }},
	{"Est. Civil", 12, func(r entity.EmployeeRecord) string { return r.EstadoCivil }},
	{"Local Nasc", 18, func(r entity.EmployeeRecord) string { return r.LocalNascimento }},
	{"UF Nasc", 8, func(r entity.EmployeeRecord) string { return r.LocalNascimentoUF }},
	{"CTPS", 16, func(r entity.EmployeeRecord) string { return r.CTPS }},
	{"Reservista", 14, func(r entity.EmployeeRecord) string { return r.Reservista }},
	{"CPF", 16, func(r entity.EmployeeRecord) string { return r.CPF }},
	{"RG", 14, func(r entity.EmployeeRecord) string { return r.RG }},
	{"Tit. Eleitor", 16, func(r entity.EmployeeRecord) string { return r.TituloEleitor }},
	{"PIS", 16, func(r entity.EmployeeRecord) string { return r.PIS }},
	{"Admissao", 12, func(r entity.EmployeeRecord) string { return r.DataAdmissao }},
	{"Salario", 14, func(r entity.EmployeeRecord) string { return r.Salario }},
	{"CBO", 10, func(r entity.EmployeeRecord) string { return r.CBO }},
	{"esocial", 14, func(r entity.EmployeeRecord) string { return r.MatriculaESocial }},
	{"Email", 28, func(r entity.EmployeeRecord) string { return r.Email }},
	{"Telefone", 16, func(r entity.EmployeeRecord) string { return r.Telefone }},
}

// Rows is the flat projection of completed items: one row per item, aligned with Columns.
type Rows struct {
	Header []string
	Values [][]string
}

func (r Rows) Len() int { return len(r.Values) }

// Project keeps COMPLETED items with a result, in queue order. Absent fields become "".
func Project(items []entity.QueueItem) Rows {
	out := Rows{Header: make([]string, len(Columns))}
	for i, c := range Columns {
		out.Header[i] = c.Header
	}
	for _, it := range items {
		if it.Status != constants.ItemStatusCompleted || it.Result == nil {
			continue
		}
		row := make([]string, len(Columns))
		for i, c := range Columns {
			row[i] = c.Value(*it.Result)
		}
		out.Values = append(out.Values, row)
	}
	return out
}
