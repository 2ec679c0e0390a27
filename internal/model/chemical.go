package model

// ChemicalProperties is an authoritative property set for a substance as
// returned by the external chemical database.
type ChemicalProperties struct {
	CID              int64    `json:"cid,omitempty"`
	Name             string   `json:"name"`
	CAS              string   `json:"cas"`
	MolecularFormula string   `json:"molecular_formula"`
	MolecularWeight  float64  `json:"molecular_weight,omitempty"`
	Synonyms         []string `json:"synonyms,omitempty"`
	HStatements      []string `json:"h_statements,omitempty"`
	PStatements      []string `json:"p_statements,omitempty"`
	SignalWord       string   `json:"signal_word,omitempty"`
}

// Identifier types accepted by the external lookup, tried in this order.
const (
	IdentifierCAS     = "cas"
	IdentifierName    = "name"
	IdentifierFormula = "formula"
)
