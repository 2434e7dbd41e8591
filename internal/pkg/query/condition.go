package query

import (
	"fmt"
	"strings"
)

// Condition represents a WHERE clause condition.
// Implementations generate SQL fragments and parameter maps
// using Spanner's named parameter format (@paramName).
type Condition interface {
	// SQL returns the SQL fragment and parameter map for this condition.
	// paramIndex is the first free parameter number (@p0, @p1, ...).
	SQL(paramIndex int) (string, map[string]interface{})
}

func param(i int) string {
	return fmt.Sprintf("p%d", i)
}

// compareCondition implements a binary comparison (field <op> value).
type compareCondition struct {
	field string
	op    string
	value interface{}
}

func (c *compareCondition) SQL(paramIndex int) (string, map[string]interface{}) {
	name := param(paramIndex)
	return fmt.Sprintf("%s %s @%s", c.field, c.op, name), map[string]interface{}{name: c.value}
}

// Eq creates a WHERE condition for equality comparison.
// Example: Eq("establishment", "Kaffe O") generates "establishment = @p0"
func Eq(field string, value interface{}) Condition {
	return &compareCondition{field: field, op: "=", value: value}
}

// Gte creates a "field >= value" condition.
func Gte(field string, value interface{}) Condition {
	return &compareCondition{field: field, op: ">=", value: value}
}

// Lt creates a "field < value" condition.
func Lt(field string, value interface{}) Condition {
	return &compareCondition{field: field, op: "<", value: value}
}

// EqFold compares a STRING column case-insensitively.
// Example: EqFold("beverage", "Latte") generates "LOWER(beverage) = @p0" with "latte"
func EqFold(field, value string) Condition {
	return &compareCondition{field: "LOWER(" + field + ")", op: "=", value: strings.ToLower(value)}
}

// Contains matches STRING columns holding term as a case-insensitive substring.
// LIKE wildcards inside term are escaped.
// Example: Contains("name", "caf") generates "LOWER(name) LIKE @p0" with "%caf%"
func Contains(field, term string) Condition {
	return &containsCondition{field: field, term: term}
}

type containsCondition struct {
	field string
	term  string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (c *containsCondition) SQL(paramIndex int) (string, map[string]interface{}) {
	name := param(paramIndex)
	pattern := "%" + likeEscaper.Replace(strings.ToLower(c.term)) + "%"
	return fmt.Sprintf("LOWER(%s) LIKE @%s", c.field, name), map[string]interface{}{name: pattern}
}

// Or joins conditions with OR inside parentheses.
// An Or of a single condition renders that condition unwrapped; an empty Or is TRUE.
func Or(conditions ...Condition) Condition {
	return &orCondition{conditions: conditions}
}

type orCondition struct {
	conditions []Condition
}

func (c *orCondition) SQL(paramIndex int) (string, map[string]interface{}) {
	params := make(map[string]interface{})
	parts := make([]string, 0, len(c.conditions))
	for _, cond := range c.conditions {
		fragment, condParams := cond.SQL(paramIndex)
		parts = append(parts, fragment)
		for k, v := range condParams {
			params[k] = v
		}
		paramIndex += len(condParams)
	}
	switch len(parts) {
	case 0:
		return "TRUE", params
	case 1:
		return parts[0], params
	}
	return "(" + strings.Join(parts, " OR ") + ")", params
}

// IsNull creates a WHERE condition for NULL checks.
// Example: IsNull("receipt_url") generates "receipt_url IS NULL"
func IsNull(field string) Condition {
	return &nullCondition{field: field, not: false}
}

// IsNotNull creates a WHERE condition for NOT NULL checks.
func IsNotNull(field string) Condition {
	return &nullCondition{field: field, not: true}
}

type nullCondition struct {
	field string
	not   bool
}

func (c *nullCondition) SQL(int) (string, map[string]interface{}) {
	if c.not {
		return c.field + " IS NOT NULL", map[string]interface{}{}
	}
	return c.field + " IS NULL", map[string]interface{}{}
}
