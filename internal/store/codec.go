package store

import (
	"encoding/json"
	"time"

	"clrpd/internal/clrp"
	"clrpd/internal/model"
)

// instanceRecord is the serialized form of an instance. The distance matrix
// is rebuilt on decode, never stored.
type instanceRecord struct {
	Name       string          `json:"name"`
	Depots     []clrp.Facility `json:"depots"`
	Satellites []clrp.Facility `json:"satellites,omitempty"`
	Customers  []clrp.Customer `json:"customers"`
	Fleet      clrp.Fleet      `json:"fleet"`
}

func encodeInstance(inst *clrp.Instance) []byte {
	b, _ := json.Marshal(instanceRecord{
		Name:       inst.Name,
		Depots:     inst.Depots,
		Satellites: inst.Satellites,
		Customers:  inst.Customers,
		Fleet:      inst.Fleet,
	})
	return b
}

func decodeInstance(data []byte) (*clrp.Instance, error) {
	var rec instanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return clrp.NewInstance(rec.Name, rec.Depots, rec.Satellites, rec.Customers, rec.Fleet)
}

func instanceMeta(id string, inst *clrp.Instance, createdAt time.Time) model.InstanceOut {
	return model.InstanceOut{
		ID:          id,
		Name:        inst.Name,
		Depots:      len(inst.Depots),
		Satellites:  len(inst.Satellites),
		Customers:   len(inst.Customers),
		TotalDemand: inst.TotalDemand(),
		TwoEchelon:  inst.TwoEchelon(),
		CreatedAt:   createdAt,
	}
}
