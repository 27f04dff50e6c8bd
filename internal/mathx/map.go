// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package mathx

import "golang.org/x/exp/constraints"

// Map re-maps x from [inMin,inMax] to [outMin,outMax] with integer
// arithmetic. The output range may be descending. x is not clamped, so
// callers that need a bounded result clamp first.
func Map[T constraints.Signed](x, inMin, inMax, outMin, outMax T) T {
	if inMax == inMin {
		return outMin
	}
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}
