// Package server exposes rule evaluation and management over HTTP.
//
// Routes:
//
//	GET    /health            liveness
//	GET    /ready             readiness (registered health checks)
//	GET    /metrics           Prometheus metrics
//	POST   /v1/evaluate       evaluate a record against the loaded rules
//	GET    /v1/rules          list rules (?category=&priority=&enabled_only=)
//	POST   /v1/rules          add a rule
//	GET    /v1/rules/{id}     get a rule
//	PUT    /v1/rules/{id}     replace a rule
//	DELETE /v1/rules/{id}     delete a rule
//	GET    /v1/audit          query audit records
//
// An evaluate request carries the record plus optional caller, category and
// audit fields:
//
//	{
//	  "record":   {"user": {"role": "guest"}, "amount": 1500},
//	  "caller":   {"role": "auditor"},
//	  "category": "refunds",
//	  "skill":    "auto-approval",
//	  "subject":  "refund-8812"
//	}
//
// The router is chi with request ID, real IP, structured request logging,
// panic recovery and a per-request timeout.
package server
