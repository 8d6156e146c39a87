package metrics

import (
	"sort"

	"github.com/roach88/tourdesk/internal/query"
)

var presets = map[string][]Metric{
	"crm": {
		{Name: "clients", Table: "clients", Kind: Count},
		{Name: "premium clients", Table: "clients", Kind: Count, Where: query.Where(query.OneOf("tier", "gold", "platinum"))},
		{Name: "bookings by status", Table: "bookings", Kind: CountBy, Field: "status"},
		{Name: "open bookings", Table: "bookings", Kind: Count, Where: query.Where(query.OneOf("status", "active", "pending", "vip"))},
		{Name: "revenue", Table: "bookings", Kind: Sum, Field: "total", Where: query.Where(query.OneOf("status", "active", "vip", "completed"))},
		{Name: "average party size", Table: "bookings", Kind: Avg, Field: "seats"},
	},
	"fleet": {
		{Name: "vehicles", Table: "fleet", Kind: Count},
		{Name: "available", Table: "fleet", Kind: Count, Where: query.Where(query.Equals("status", "available"))},
		{Name: "in maintenance", Table: "fleet", Kind: Count, Where: query.Where(query.Equals("status", "maintenance"))},
		{Name: "available seats", Table: "fleet", Kind: Sum, Field: "capacity", Where: query.Where(query.Equals("status", "available"))},
		{Name: "vehicles by kind", Table: "fleet", Kind: CountBy, Field: "kind"},
	},
	"club": {
		{Name: "members", Table: "club_members", Kind: Count},
		{Name: "members by level", Table: "club_members", Kind: CountBy, Field: "level"},
		{Name: "points issued", Table: "club_members", Kind: Sum, Field: "points"},
		{Name: "average points", Table: "club_members", Kind: Avg, Field: "points"},
		{Name: "top balance", Table: "club_members", Kind: Max, Field: "points"},
	},
	"partners": {
		{Name: "partners", Table: "partners", Kind: Count},
		{Name: "partners by type", Table: "partners", Kind: CountBy, Field: "type"},
		{Name: "average commission", Table: "partners", Kind: Avg, Field: "commission"},
		{Name: "lowest commission", Table: "partners", Kind: Min, Field: "commission"},
		{Name: "highest commission", Table: "partners", Kind: Max, Field: "commission"},
	},
}

// Preset returns a copy of the named dashboard's metrics.
func Preset(name string) ([]Metric, bool) {
	ms, ok := presets[name]
	if !ok {
		return nil, false
	}
	return append([]Metric(nil), ms...), true
}

// PresetNames lists the dashboards with presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
