// Package plans holds the immutable plan catalog: per-tier revenue, meeting
// minute caps and AI budget factors.
//
// A Catalog is loaded once at startup from a Source (in-memory or YAML file),
// validated, and then passed to every component that needs plan data. Caps set
// to Unlimited are treated as absent. Money values use shopspring/decimal.
package plans
