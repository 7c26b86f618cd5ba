// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"unicode/utf8"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean". Inputs shorter than twice this only get half their
// length, so "ui" does not suggest every two-letter name.
const maxSuggestDistance = 3

// Closest returns the candidate nearest to input by case-insensitive
// edit distance, or "" when none is close enough. Ties go to the
// earlier candidate. Commands use it for subcommand and flag names;
// dlcache sync uses it for group, bundle and entry ids.
func Closest(input string, candidates []string) string {
	limit := min(maxSuggestDistance, max(1, utf8.RuneCountInString(input)/2))
	best, bestDistance := "", limit+1
	lowered := strings.ToLower(input)
	for _, candidate := range candidates {
		if candidate == input {
			continue
		}
		if distance := levenshtein(lowered, strings.ToLower(candidate)); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

func suggestCommand(unknown string, commands []*Command) string {
	names := make([]string, len(commands))
	for i, command := range commands {
		names[i] = command.Name
	}
	return Closest(unknown, names)
}

// suggestFlag finds the first flag in args the set does not define and
// returns the closest defined flag with its dash prefix.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	var defined []string
	flagSet.VisitAll(func(f *pflag.Flag) { defined = append(defined, f.Name) })

	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") || arg == "--" {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if flagSet.Lookup(name) != nil {
			continue
		}
		switch best := Closest(name, defined); {
		case best == "":
			return ""
		case len(best) == 1:
			return "-" + best
		default:
			return "--" + best
		}
	}
	return ""
}

// levenshtein is the edit distance between a and b counted in runes,
// keeping two rows of the distance matrix.
func levenshtein(a, b string) int {
	source, target := []rune(a), []rune(b)
	if len(source) > len(target) {
		source, target = target, source
	}
	previous := make([]int, len(source)+1)
	current := make([]int, len(source)+1)
	for i := range previous {
		previous[i] = i
	}
	for j := 1; j <= len(target); j++ {
		current[0] = j
		for i := 1; i <= len(source); i++ {
			cost := 1
			if source[i-1] == target[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(source)]
}
