// Package source loads rules from outside the store.
//
// A FileSource reads YAML or JSON rule documents from a file or a directory
// tree:
//
//	rules:
//	  - id: large-expense
//	    name: Large expense
//	    priority: high
//	    conditions:
//	      - field: expense.amount
//	        operator: greater_than
//	        value: 500
//	    actions:
//	      - type: review
//
// Rules default to enabled. A Watcher reports changes to those files after a
// debounce period so callers can resynchronize, typically through
// manager.Manager.Sync.
package source
