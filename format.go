// Copyright (c) 2020–2026 The afg3021b developers. All rights reserved.
// Project site: https://github.com/gotmc/afg3021b
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package afg3021b

import (
	"strconv"
	"strings"
)

// formatValue renders v with the fewest digits that round-trip. There is no
// rounding to a fixed number of significant digits, so 0.1+0.2 is sent as
// "0.30000000000000004" rather than "0.3". Decimal exponents from -4 through
// 15 use fixed notation and always carry a decimal point (25e6 is
// "25000000.0"); anything else uses exponent notation with at least two
// exponent digits ("1e-06").
func formatValue(v float64) string {
	e := strconv.FormatFloat(v, 'e', -1, 64)
	i := strings.LastIndexByte(e, 'e')
	if i < 0 {
		// NaN or Inf; callers reject these first.
		return e
	}
	exp, err := strconv.Atoi(e[i+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return e
	}
	f := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(f, ".") {
		f += ".0"
	}
	return f
}
