package registry

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// LoadFromFile reads a JSON array of consolidated records and adds them to
// the table, replacing seed entries with the same RUC. Records failing RUC
// validation are rejected as a whole so a bad fixture never half-loads.
func (l *Local) LoadFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "registry: read fixture")
	}

	var records []model.ConsolidatedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, eris.Wrap(err, "registry: unmarshal fixture")
	}

	for i := range records {
		if _, err := model.ParseRUC(records[i].RUC.String()); err != nil {
			return 0, eris.Wrapf(err, "registry: fixture record %d", i)
		}
	}
	for i := range records {
		l.Add(&records[i])
	}
	return len(records), nil
}
