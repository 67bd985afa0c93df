package model

// NotFound is the value of a field that has not been extracted yet.
// The extraction service is asked to use the same literal for missing data,
// so a value equal to NotFound never overwrites anything during a merge.
const NotFound = "Not found"

// DefaultFields are the fields extracted when the user does not choose any.
var DefaultFields = []string{
	"phone_number",
	"email",
	"company_overview",
	"headquarters_location",
}

// Record is the master record for one company website.
// It maps field names to extracted values and is updated in place as more
// pages are crawled.
type Record map[string]string

// NewRecord returns a record with every field set to NotFound.
func NewRecord(fields []string) Record {
	r := make(Record, len(fields))
	for _, f := range fields {
		r[f] = NotFound
	}
	return r
}

// IsComplete reports whether every field holds an extracted value.
// An empty record is never complete.
func (r Record) IsComplete(fields []string) bool {
	if len(r) == 0 {
		return false
	}
	for _, f := range fields {
		v, ok := r[f]
		if !ok || v == NotFound {
			return false
		}
	}
	return true
}

// Merge copies every extracted value of update into r.
// Values equal to NotFound are ignored, and fields missing from r are
// initialized to NotFound.
func (r Record) Merge(update Record, fields []string) {
	for _, f := range fields {
		if v, ok := update[f]; ok && v != NotFound {
			r[f] = v
			continue
		}
		if _, ok := r[f]; !ok {
			r[f] = NotFound
		}
	}
}

// Project returns a copy of r restricted to fields.
// Absent fields are reported as NotFound.
func (r Record) Project(fields []string) Record {
	out := make(Record, len(fields))
	for _, f := range fields {
		v, ok := r[f]
		if !ok {
			v = NotFound
		}
		out[f] = v
	}
	return out
}

// Missing returns the fields that are still unfilled, in field order.
func (r Record) Missing(fields []string) []string {
	missing := make([]string, 0, len(fields))
	for _, f := range fields {
		if v, ok := r[f]; !ok || v == NotFound {
			missing = append(missing, f)
		}
	}
	return missing
}

// Filled reports whether field holds an extracted value.
func (r Record) Filled(field string) bool {
	v, ok := r[field]
	return ok && v != NotFound
}
