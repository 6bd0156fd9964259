// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package testutil

import (
	"fmt"
	"reflect"

	"gopkg.in/check.v1"
)

type intChecker struct {
	*check.CheckerInfo
	rel string
}

func (checker *intChecker) Check(params []interface{}, names []string) (result bool, error string) {
	a, err := toInt64(params[0])
	if err != nil {
		return false, err.Error()
	}
	b, err := toInt64(params[1])
	if err != nil {
		return false, err.Error()
	}
	switch checker.rel {
	case "<=":
		return a <= b, ""
	case ">=":
		return a >= b, ""
	case "<":
		return a < b, ""
	}
	return false, fmt.Sprintf("unexpected relation %q", checker.rel)
}

func toInt64(v interface{}) (int64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("%T is not a signed integer", v)
}

// IntLessThan checks that the first argument is strictly less than the
// second. Both must be integers of any width (durations included).
var IntLessThan check.Checker = &intChecker{
	CheckerInfo: &check.CheckerInfo{Name: "IntLessThan", Params: []string{"a", "b"}},
	rel:         "<",
}

// IntLessEqual checks that the first argument is less than or equal to
// the second.
var IntLessEqual check.Checker = &intChecker{
	CheckerInfo: &check.CheckerInfo{Name: "IntLessEqual", Params: []string{"a", "b"}},
	rel:         "<=",
}

// IntGreaterEqual checks that the first argument is greater than or
// equal to the second.
var IntGreaterEqual check.Checker = &intChecker{
	CheckerInfo: &check.CheckerInfo{Name: "IntGreaterEqual", Params: []string{"a", "b"}},
	rel:         ">=",
}
