package xlsx

import (
	"strconv"
	"strings"
)

// MaxSheetNameLen is Excel's limit on worksheet name length.
const MaxSheetNameLen = 31

var sheetNameReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_",
)

// SanitizeSheetName makes name acceptable to Excel: forbidden characters
// become underscores, surrounding apostrophes are trimmed, the result is cut
// to 31 characters, and an empty name becomes "Sheet".
func SanitizeSheetName(name string) string {
	s := strings.Trim(sheetNameReplacer.Replace(name), "'")
	s = strings.Trim(truncate(s, MaxSheetNameLen), "'")
	if strings.TrimSpace(s) == "" {
		return "Sheet"
	}
	return s
}

// UniqueSheetNames sanitizes every name and resolves collisions, which Excel
// checks case-insensitively, by appending _2, _3, ... to later duplicates.
// The base is shortened so the suffixed name still fits.
func UniqueSheetNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		base := SanitizeSheetName(n)
		name := base
		for k := 2; seen[strings.ToLower(name)]; k++ {
			suffix := "_" + strconv.Itoa(k)
			name = truncate(base, MaxSheetNameLen-len(suffix)) + suffix
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
