package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/supplylist/internal/model"
)

// Export renders the aggregate as the indented JSON document users download.
// Its shape is identical to the stored slot value, so Import accepts it as is.
func Export(s *model.Store) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// ExportFilename returns the suggested download name for an export taken at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("supply-list-backup-%s.json", t.UTC().Format("2006-01-02"))
}
