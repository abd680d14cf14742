package database

import (
	"regexp"
	"strconv"
	"strings"
)

var typeModifiers = regexp.MustCompile(`\s*\([^)]*\)`)

// NormalizeTypeName lowercases a catalog or driver type name and drops length,
// precision and scale modifiers, so "VARCHAR(255)" and "varchar" compare equal.
func NormalizeTypeName(name string) string {
	name = typeModifiers.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// SamplingEnabled reports whether percent selects block sampling. Values
// outside (0, 100) read the leading rows instead.
func SamplingEnabled(percent float64) bool {
	return percent > 0 && percent < 100
}

// FormatPercent renders a sampling percentage without trailing zeros.
func FormatPercent(percent float64) string {
	return strconv.FormatFloat(percent, 'f', -1, 64)
}

var bareIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// PartitionExpressionColumn returns the column named by a partition
// expression when the expression is a bare, optionally quoted, column
// reference. Function expressions such as YEAR(created_at) yield "".
func PartitionExpressionColumn(expr string) string {
	expr = strings.TrimSpace(expr)
	for _, q := range []string{"`", `"`} {
		if len(expr) >= 2 && strings.HasPrefix(expr, q) && strings.HasSuffix(expr, q) {
			inner := expr[1 : len(expr)-1]
			if !strings.Contains(inner, q) {
				return inner
			}
			return ""
		}
	}
	if bareIdentifier.MatchString(expr) {
		return expr
	}
	return ""
}
