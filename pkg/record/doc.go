// Package record provides the value type that rules are evaluated against.
//
// Skills hand the engine loosely structured data: decoded JSON events,
// YAML fixtures, or maps built from domain structs. Value is a tagged union
// over null, bool, number, string, list and map that gives those shapes a
// single static type and a dotted-path lookup:
//
//	rec, _ := record.FromJSON([]byte(`{"action": {"amount": 750}}`))
//	amount, ok := rec.Lookup("action.amount") // 750, true
//	_, ok = rec.Lookup("action.currency")     // false
//
// Lists are indexed by numeric segments ("items.0.sku").
package record
