// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package dialect

// maxTokenLen bounds the characters kept for one number
const maxTokenLen = 15

// ExtractInts scans data for runs of digits and minus signs and converts
// each run to an integer. Every other byte separates runs. At most max
// values are returned. A run converts like C atoi: an optional leading
// minus and the digits after it, so "-" is 0 and "12-3" is 12.
func ExtractInts(data []byte, max int) []int {
	var values []int
	var token [maxTokenLen]byte
	n := 0

	flush := func() {
		if n > 0 {
			values = append(values, atoi(token[:n]))
			n = 0
		}
	}

	for _, b := range data {
		if len(values) >= max {
			break
		}
		if (b >= '0' && b <= '9') || b == '-' {
			if n < maxTokenLen {
				token[n] = b
				n++
			}
			continue
		}
		flush()
	}
	if len(values) < max {
		flush()
	}
	return values
}

func atoi(tok []byte) int {
	neg := false
	i := 0
	if i < len(tok) && tok[i] == '-' {
		neg = true
		i++
	}
	v := 0
	for ; i < len(tok) && tok[i] >= '0' && tok[i] <= '9'; i++ {
		v = v*10 + int(tok[i]-'0')
	}
	if neg {
		return -v
	}
	return v
}
