package ml

const (
	DefaultNumeric     = 0.0
	DefaultCategorical = "Unknown"
)

// Schema lists the feature columns every prediction request must carry.
type Schema struct {
	Numeric     []string `json:"numeric"`
	Categorical []string `json:"categorical"`
}

// DefaultSchema is the clickstream feature set shared by all three tasks.
func DefaultSchema() Schema {
	return Schema{
		Numeric: []string{"year", "month", "day", "order", "session_id", "price_2", "page"},
		Categorical: []string{
			"country",
			"page1_main_category",
			"page2_clothing_model",
			"colour",
			"location",
			"model_photography",
		},
	}
}

// Columns returns numeric columns followed by categorical columns.
func (s Schema) Columns() []string {
	columns := make([]string, 0, len(s.Numeric)+len(s.Categorical))
	columns = append(columns, s.Numeric...)
	columns = append(columns, s.Categorical...)
	return columns
}

func (s Schema) IsNumeric(column string) bool {
	for _, name := range s.Numeric {
		if name == column {
			return true
		}
	}
	return false
}

func (s Schema) Has(column string) bool {
	if s.IsNumeric(column) {
		return true
	}
	for _, name := range s.Categorical {
		if name == column {
			return true
		}
	}
	return false
}

// Missing returns the schema columns absent from the given set, in schema order.
func (s Schema) Missing(present []string) []string {
	seen := make(map[string]bool, len(present))
	for _, name := range present {
		seen[name] = true
	}
	var missing []string
	for _, name := range s.Columns() {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
