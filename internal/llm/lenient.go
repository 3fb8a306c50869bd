package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// synonyms maps keys models commonly invent onto the schema.
var synonyms = map[string]string{
	"nome_completo": "nome",
	"empresa":       "empregador",
	"endereco":      "endereco_logradouro",
	"logradouro":    "endereco_logradouro",
	"bairro":        "endereco_bairro",
	"cidade":        "endereco_cidade",
	"cep":           "endereco_cep",
	"pai":           "filiacao_pai",
	"mae":           "filiacao_mae",
	"celular":       "telefone",
	"pis_pasep":     "pis",
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (nome_completo -> nome)
// - Drops null optionals
// - Coerces numbers/bools to strings and trims strings
// - Removes unknown keys (strict additionalProperties = false friendliness)
// Objects and arrays are left in place so schema validation rejects them.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: response is not a JSON object")
	}

	dropped := make([]string, 0, 8)

	// 1) rename synonyms to the schema
	for from, to := range synonyms {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 2) remove unknown keys
	allowed := fieldKeys()
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 3) coerce scalars
	for k, v := range maps.Clone(m) {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			m[k] = strings.TrimSpace(t)
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			m[k] = strconv.FormatBool(t)
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
