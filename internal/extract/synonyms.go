package extract

// builtinSynonyms adds multilingual table labels for well-known KPI codes.
var builtinSynonyms = map[string][]string{
	"total_ghg_emissions": {
		"total ghg emissions",
		"ghg emissions total",
		"treibhausgasemissionen gesamt",
		"emissions totales de ges",
	},
	"energy_consumption": {
		"total energy consumption",
		"energy consumption total",
		"gesamtenergieverbrauch",
		"consommation totale d energie",
	},
	"water_withdrawal": {
		"total water withdrawal",
		"water withdrawal total",
		"gesamtwasserentnahme",
		"prelevement total d eau",
	},
}

// tableTerms returns the normalized labels that identify kpi in a table row.
func tableTerms(code string, synonyms []string) []string {
	terms := append([]string{}, synonyms...)
	terms = append(terms, builtinSynonyms[code]...)
	if len(terms) == 0 {
		terms = append(terms, code)
	}
	return normalizedTerms(terms)
}
