package appointments

import "strings"

// FallbackDurationMinutes applies to unknown appointment types.
const FallbackDurationMinutes = 20

// AppointmentType is an entry of the pharmacy's service catalog.
type AppointmentType struct {
	Name            string
	Label           string
	DurationMinutes int
}

var catalog = []AppointmentType{
	{Name: "flu_shot", Label: "Flu shot", DurationMinutes: 20},
	{Name: "consultation", Label: "Consultation", DurationMinutes: 20},
	{Name: "vaccination", Label: "Vaccination", DurationMinutes: 20},
	{Name: "medication_review", Label: "Medication review", DurationMinutes: 30},
}

// Catalog returns the known appointment types in display order.
func Catalog() []AppointmentType {
	out := make([]AppointmentType, len(catalog))
	copy(out, catalog)
	return out
}

// TypeNames returns the catalog's machine names.
func TypeNames() []string {
	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		names = append(names, t.Name)
	}
	return names
}

// LookupType finds a catalog entry, tolerating case, spaces and hyphens.
func LookupType(name string) (AppointmentType, bool) {
	key := normalizeType(name)
	for _, t := range catalog {
		if t.Name == key {
			return t, true
		}
	}
	return AppointmentType{}, false
}

// DefaultDuration is the catalog duration for name, or the fallback.
func DefaultDuration(name string) int {
	if t, ok := LookupType(name); ok {
		return t.DurationMinutes
	}
	return FallbackDurationMinutes
}

func normalizeType(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	return key
}
