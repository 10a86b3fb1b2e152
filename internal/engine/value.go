package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mparcell123/Ableton-MCP/internal/live"
)

// ApplyMode tags which value-application path produced a result.
type ApplyMode string

const (
	ModeAbsolute            ApplyMode = "absolute"
	ModeDisplayText         ApplyMode = "display_text"
	ModeDisplayTextFallback ApplyMode = "display_text_fallback"
	ModeDisplayVerify       ApplyMode = "display_verify"
)

const (
	// verifyIterations bounds the bisection loop for continuous parameters.
	verifyIterations = 15
	// verifyTolerance is the relative error under which a converged display
	// value counts as exact (absolute 0.01 when the target is zero).
	verifyTolerance = 0.001
)

// applyOutcome reports one completed value application. ExactMatch is a
// tri-state: nil for absolute mode, where exactness is not meaningful.
type applyOutcome struct {
	Mode       ApplyMode
	Value      float64
	Display    string
	ExactMatch *bool
}

// setParameterAbsolute clamps the value into [min,max] and assigns it.
func setParameterAbsolute(param live.Parameter, value float64) (applyOutcome, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return applyOutcome{}, errf(KindInvalidValue, "value must be a finite number")
	}
	v := clampFloat(value, param.Min(), param.Max())
	if err := param.SetValue(v); err != nil {
		return applyOutcome{}, errf(KindApplyFailed, "setting %q: %v", param.Name(), err)
	}
	current := param.Value()
	return applyOutcome{
		Mode:    ModeAbsolute,
		Value:   current,
		Display: param.DisplayValue(current),
	}, nil
}

// setParameterByDisplayText matches a free-text label against the rendered
// display of every quantized step: equality 100, containment 10, otherwise
// shared-token count, stopping early on an exact hit. When nothing scores
// above zero a supplied fallback value is applied via absolute mode and the
// result tagged display_text_fallback.
func setParameterByDisplayText(param live.Parameter, targetText string, fallback *float64) (applyOutcome, error) {
	targetNorm := normalizeDisplayText(targetText)
	if targetNorm == "" {
		return applyOutcome{}, errf(KindInvalidValue, "target_display_text must be a non-empty string")
	}
	if !param.IsQuantized() {
		return applyOutcome{}, errf(KindUnsupportedMode, "target_display_text is only supported for quantized parameters")
	}

	pMin, pMax := param.Min(), param.Max()
	steps := quantizedStepCount(pMin, pMax)

	bestVal := math.NaN()
	bestScore := 0.0
	bestExact := false
	for i := 0; i < steps; i++ {
		candidate := pMin + float64(i)
		display := param.DisplayValue(candidate)
		score, exact := scoreDisplayTextMatch(targetNorm, normalizeDisplayText(display))
		if score > bestScore {
			bestScore = score
			bestVal = candidate
			bestExact = exact
			if exact {
				break
			}
		}
	}

	if bestScore > 0 {
		if err := param.SetValue(bestVal); err != nil {
			return applyOutcome{}, errf(KindApplyFailed, "setting %q: %v", param.Name(), err)
		}
		current := param.Value()
		return applyOutcome{
			Mode:       ModeDisplayText,
			Value:      current,
			Display:    param.DisplayValue(current),
			ExactMatch: boolPtr(bestExact),
		}, nil
	}

	if fallback != nil {
		out, err := setParameterAbsolute(param, *fallback)
		if err != nil {
			return applyOutcome{}, err
		}
		out.Mode = ModeDisplayTextFallback
		out.ExactMatch = boolPtr(false)
		return out, nil
	}

	return applyOutcome{}, errf(KindNoDisplayMatch, "target_display_text %q did not match any quantized value", targetText)
}

// scoreDisplayTextMatch ranks a normalized candidate label against the
// normalized target: 100 for equality (exact), 10 for containment either
// direction, otherwise the shared-token count.
func scoreDisplayTextMatch(targetNorm, candidateNorm string) (float64, bool) {
	if targetNorm == "" || candidateNorm == "" {
		return 0, false
	}
	if targetNorm == candidateNorm {
		return 100, true
	}
	if strings.Contains(candidateNorm, targetNorm) || strings.Contains(targetNorm, candidateNorm) {
		return 10, false
	}
	targetTokens := strings.Fields(targetNorm)
	candidateSet := make(map[string]bool)
	for _, t := range strings.Fields(candidateNorm) {
		candidateSet[t] = true
	}
	overlap := 0
	seen := make(map[string]bool)
	for _, t := range targetTokens {
		if candidateSet[t] && !seen[t] {
			overlap++
			seen[t] = true
		}
	}
	return float64(overlap), false
}

// setParameterWithVerify drives the backing value until the host's rendered
// display, parsed and converted to the requested unit, lands on the numeric
// target. Quantized parameters are scanned step by step; continuous ones are
// bisected for up to verifyIterations with the monotonicity direction
// inferred from the endpoint displays. When convergence misses tolerance and
// a fallback is supplied, the fallback is applied and exact_match is false.
func setParameterWithVerify(param live.Parameter, target float64, unit string, fallback *float64) (applyOutcome, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return applyOutcome{}, errf(KindInvalidValue, "target_display_value must be a finite number")
	}
	unitHint := normalizeUnitHint(unit)
	pMin, pMax := param.Min(), param.Max()

	readDisplay := func(backing float64) (string, *float64) {
		display := param.DisplayValue(backing)
		parsed := parseDisplayNumber(display)
		if parsed == nil {
			return display, nil
		}
		converted := convertDisplayNumberForUnit(*parsed, display, unitHint)
		return display, &converted
	}

	var display string
	var finalNum *float64
	exact := false

	if param.IsQuantized() {
		bestVal := pMin
		bestDiff := math.Inf(1)
		steps := quantizedStepCount(pMin, pMax)
		for i := 0; i < steps; i++ {
			candidate := pMin + float64(i)
			_, num := readDisplay(candidate)
			if num == nil {
				continue
			}
			diff := math.Abs(*num - target)
			if diff < bestDiff {
				bestDiff = diff
				bestVal = candidate
				if diff < verifyTolerance {
					break
				}
			}
		}
		if err := param.SetValue(bestVal); err != nil {
			return applyOutcome{}, errf(KindApplyFailed, "setting %q: %v", param.Name(), err)
		}
		display, finalNum = readDisplay(param.Value())
		exact = finalNum != nil && math.Abs(*finalNum-target) < 0.01
	} else {
		low, high := pMin, pMax
		bestVal := (low + high) / 2
		bestDiff := math.Inf(1)

		_, lowNum := readDisplay(low)
		_, highNum := readDisplay(high)
		ascending := true
		if lowNum != nil && highNum != nil {
			ascending = *highNum > *lowNum
		}

		for iter := 0; iter < verifyIterations; iter++ {
			mid := (low + high) / 2
			_, midNum := readDisplay(mid)
			if midNum == nil {
				break
			}

			diff := math.Abs(*midNum - target)
			if diff < bestDiff {
				bestDiff = diff
				bestVal = mid
			}

			if target != 0 {
				if diff/math.Abs(target) < verifyTolerance {
					break
				}
			} else if diff < 0.01 {
				break
			}

			if ascending == (*midNum < target) {
				low = mid
			} else {
				high = mid
			}
			if math.Abs(high-low) < 0.0001 {
				break
			}
		}

		bestVal = clampFloat(bestVal, pMin, pMax)
		if err := param.SetValue(bestVal); err != nil {
			return applyOutcome{}, errf(KindApplyFailed, "setting %q: %v", param.Name(), err)
		}
		display, finalNum = readDisplay(param.Value())
		switch {
		case finalNum == nil:
			exact = false
		case target != 0:
			exact = math.Abs(*finalNum-target)/math.Abs(target) < verifyTolerance
		default:
			exact = math.Abs(*finalNum-target) < 0.01
		}
	}

	usedFallback := false
	if !exact && fallback != nil {
		fb := clampFloat(*fallback, pMin, pMax)
		if err := param.SetValue(fb); err == nil {
			display, _ = readDisplay(param.Value())
			usedFallback = true
		}
	}

	return applyOutcome{
		Mode:       ModeDisplayVerify,
		Value:      param.Value(),
		Display:    display,
		ExactMatch: boolPtr(exact && !usedFallback),
	}, nil
}

var displayNumberRe = regexp.MustCompile(`[-+]?\d+\.?\d*`)

// parseDisplayNumber extracts the first numeric token from a rendered
// display string ("8.00 kHz" -> 8.00), nil when none is present.
func parseDisplayNumber(display string) *float64 {
	m := displayNumberRe.FindString(display)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// normalizeUnitHint canonicalizes a caller-supplied unit to "%", "ms", "s",
// or the lower-cased input.
func normalizeUnitHint(unit string) string {
	value := strings.ToLower(strings.TrimSpace(unit))
	switch value {
	case "percent", "percentage", "pct", "%":
		return "%"
	case "ms", "millisecond", "milliseconds":
		return "ms"
	case "s", "sec", "second", "seconds":
		return "s"
	}
	return value
}

// convertDisplayNumberForUnit converts a parsed display number to the
// requested unit using the rendered string's own unit hint: ms<->s scale by
// 1000; for percent, a kHz-style display is trusted as-is when it already
// carries "%", and a bare value in [-1,1] is treated as fractional.
func convertDisplayNumberForUnit(number float64, displayStr, unitHint string) float64 {
	if unitHint == "" {
		return number
	}
	display := strings.ToLower(displayStr)

	switch unitHint {
	case "s":
		if strings.Contains(display, "ms") {
			return number / 1000
		}
		return number
	case "ms":
		if strings.Contains(display, "ms") {
			return number
		}
		if strings.Contains(display, "sec") || strings.Contains(display, "seconds") {
			return number * 1000
		}
		return number
	case "%":
		if strings.Contains(display, "%") {
			return number
		}
		if number >= -1 && number <= 1 {
			return number * 100
		}
		return number
	case "hz":
		if strings.Contains(display, "khz") {
			return number * 1000
		}
		return number
	case "khz":
		if strings.Contains(display, "khz") {
			return number
		}
		if strings.Contains(display, "hz") {
			return number / 1000
		}
		return number
	}
	return number
}

// quantizedStepCount counts the integer steps of a quantized range,
// inclusive of both endpoints, never less than one.
func quantizedStepCount(min, max float64) int {
	steps := int(max-min) + 1
	if steps < 1 {
		return 1
	}
	return steps
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func boolPtr(b bool) *bool { return &b }
