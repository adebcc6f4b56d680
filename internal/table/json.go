package table

import "encoding/json"

// MarshalJSON zapisuje tabelę jako siatkę [[nagłówki], [wiersz], ...] –
// ten sam format, który trzymamy w daily_entries.data.
func (t Table) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("[]"), nil
	}
	return json.Marshal(t.Grid())
}

func (t *Table) UnmarshalJSON(b []byte) error {
	var grid [][]Cell
	if err := json.Unmarshal(b, &grid); err != nil {
		return err
	}
	if len(grid) == 0 {
		*t = Table{}
		return nil
	}
	parsed, err := FromGrid(grid)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
