package utils

import "strings"

// UniqueUint removes duplicate values from a slice of uints.
func UniqueUint(slice []uint) []uint {
	keys := make(map[uint]bool)
	list := []uint{}
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

// NormalizeTags lowercases, trims and deduplicates tag values, dropping empties.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
