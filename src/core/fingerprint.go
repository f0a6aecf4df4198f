package core

import "strings"

// computeFingerprint builds the ordered sequence of strings that make up a
// wrapper's implicit-input fingerprint: every target dependency's path, then
// every non-target dependency's long-path-safe path, then the target's own
// hashable implicit inputs with embedded line breaks escaped so a diff against
// the persisted copy is unambiguous. This must be called with dependency
// resolution already complete, and the order must never be sorted further:
// target/non-target deps arrive pre-sorted by Resolve (see resolver.go), and
// the hashable-inputs tail retains whatever order the target returned it in.
func computeFingerprint(targetDeps []*TargetWrapper, nontargetDeps []NonTargetDep, hashableInputs []string) []string {
	lines := make([]string, 0, len(targetDeps)+len(nontargetDeps)+len(hashableInputs))
	for _, d := range targetDeps {
		lines = append(lines, d.Path)
	}
	for _, d := range nontargetDeps {
		lines = append(lines, d.Path)
	}
	for _, s := range hashableInputs {
		lines = append(lines, escapeLineBreaks(s))
	}
	return lines
}

// escapeLineBreaks replaces embedded CR/LF in a single logical fingerprint
// entry with their two-character literal forms, so that writing fingerprint
// entries one-per-line to a text file can't be confused by an entry that
// itself contains a line break.
func escapeLineBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
