// Rulekit is a business rules engine for AI-employee skills.
//
// Rules are condition sets over JSON records paired with actions (allow,
// block, review, alert, route, escalate, tag). Skills evaluate their domain
// records against the rule set and act on the triggered actions.
//
// Usage:
//
//	# Evaluate a record against the rule store
//	rulekit eval --record order.json
//
//	# Validate rule files
//	rulekit lint --file rules.yaml
//
//	# Manage stored rules
//	rulekit rules list --category access
//	rulekit rules import --file rules/
//
//	# Inspect and prune the audit log
//	rulekit audit query --skill policy-enforcer --blocked
//	rulekit audit prune
//
//	# Run the HTTP management API
//	rulekit serve --config rulekit.yaml
package main

import "os"

func main() {
	os.Exit(Execute())
}
