package feedback

import (
	"reflect"
	"strings"
	"testing"
)

// The composite unique index on (source, natural_key) is what makes dedup
// hold up under concurrent ingest calls; guard the schema tags so a model
// edit cannot silently demote it to a plain index.
func TestEntryDedupIndexIsUnique(t *testing.T) {
	typ := reflect.TypeOf(Entry{})
	for _, name := range []string{"Source", "NaturalKey"} {
		field, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("Entry has no field %s", name)
		}
		tag := field.Tag.Get("gorm")
		if !strings.Contains(tag, "uniqueIndex:idx_feedback_source_key") {
			t.Errorf("%s gorm tag = %q, missing unique dedup index", name, tag)
		}
	}
}
