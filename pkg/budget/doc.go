// Package budget decides whether a user may start a meeting, start a free trial
// or make an AI request, from the plan catalog and fresh usage aggregates.
//
// Policy denials are returned as a Decision with Allowed false, a Code and a
// user-facing Reason; errors mean the policy could not be evaluated at all.
// Meeting checks report an already open meeting before any quota, so the user
// sees the actionable message first.
//
// The AI budget of a plan is MonthlyRevenue * AIBudgetFactor + AIAllowance.
// The free plan has no revenue, so its budget is exactly its allowance.
package budget
