// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/Query-farm/hyena-go/hyena"
)

var operatorSymbols = map[string]hyena.ScanComparison{
	"<":  hyena.Lt,
	"<=": hyena.LtEq,
	"=":  hyena.Eq,
	"==": hyena.Eq,
	">=": hyena.GtEq,
	">":  hyena.Gt,
	"!=": hyena.NotEq,
	"~":  hyena.Matches,
}

// parseFilters parses "a > 1 && b = x || c contains y" into OR-of-AND
// groups. Columns are names from cat or #id.
func parseFilters(expr string, cat *hyena.Catalog) (hyena.OrFilters, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	var or hyena.OrFilters
	for _, group := range strings.Split(expr, "||") {
		var and hyena.AndFilters
		for _, cond := range strings.Split(group, "&&") {
			f, err := parseCondition(strings.TrimSpace(cond), cat)
			if err != nil {
				return nil, err
			}
			and = append(and, f)
		}
		or = append(or, and)
	}
	return or, nil
}

func parseCondition(cond string, cat *hyena.Catalog) (hyena.ScanFilter, error) {
	parts := strings.Fields(cond)
	if len(parts) < 3 {
		return hyena.ScanFilter{}, fmt.Errorf("filter %q: want \"column op value\"", cond)
	}
	op, ok := operatorSymbols[parts[1]]
	if !ok {
		var err error
		if op, err = hyena.ParseScanComparison(parts[1]); err != nil {
			return hyena.ScanFilter{}, fmt.Errorf("filter %q: %w", cond, err)
		}
	}

	b := hyena.NewFilterBuilder(cat).Op(op)
	col, err := resolveColumn(parts[0], cat)
	if err != nil {
		return hyena.ScanFilter{}, fmt.Errorf("filter %q: %w", cond, err)
	}
	b.Column(col.ID)

	// The operand is the rest of the condition with its spacing kept.
	at := len(parts[0]) + strings.Index(cond[len(parts[0]):], parts[1]) + len(parts[1])
	rest := strings.TrimSpace(cond[at:])
	if col.DataType.IsString() {
		if unq, err := strconv.Unquote(rest); err == nil {
			rest = unq
		}
		b.Value(rest)
	} else {
		n, ok := new(big.Int).SetString(rest, 0)
		if !ok {
			return hyena.ScanFilter{}, fmt.Errorf("filter %q: %q is not an integer", cond, rest)
		}
		b.Value(n)
	}
	f, err := b.Build()
	if err != nil {
		return hyena.ScanFilter{}, fmt.Errorf("filter %q: %w", cond, err)
	}
	return f, nil
}

// resolveColumn accepts a column name or #id.
func resolveColumn(ref string, cat *hyena.Catalog) (hyena.Column, error) {
	if id, ok := strings.CutPrefix(ref, "#"); ok {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return hyena.Column{}, fmt.Errorf("bad column id %q", ref)
		}
		if col, ok := cat.Column(n); ok {
			return col, nil
		}
		return hyena.Column{}, fmt.Errorf("no column with id %d", n)
	}
	if col, ok := cat.ColumnByName(ref); ok {
		return col, nil
	}
	return hyena.Column{}, fmt.Errorf("no column named %q", ref)
}

// resolveProjection maps a list of column references to ids.
func resolveProjection(refs []string, cat *hyena.Catalog) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		col, err := resolveColumn(ref, cat)
		if err != nil {
			return nil, err
		}
		ids = append(ids, col.ID)
	}
	return ids, nil
}
