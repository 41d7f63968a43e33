// Package memoryfile reads and appends to the user's markdown memory file.
// The only write operation is appending a fact to a well-known section;
// the rest of the file is preserved byte for byte.
package memoryfile

import (
	"os"
	"strings"
)

const sectionHeader = "## Gemini Added Memories"

// Read loads the memory file at path, returning an empty string if it does
// not exist (a fresh install has no memory file yet).
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// AppendFact normalizes the fact (strips leading dashes), locates the
// `## Gemini Added Memories` section, and appends `- {fact}` as its last
// line, creating the section if absent. All other content is preserved
// byte-for-byte.
func AppendFact(content, fact string) string {
	fact = normalizeFact(fact)
	lines := splitKeepTrailing(content)

	idx := findSectionHeader(lines)
	if idx == -1 {
		return appendNewSection(content, fact)
	}

	insertAt := sectionEnd(lines, idx)
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insertAt]...)
	out = append(out, "- "+fact)
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n")
}

// WriteFact reads path, appends fact, and writes the result back.
func WriteFact(path, fact string) error {
	content, err := Read(path)
	if err != nil {
		return err
	}
	updated := AppendFact(content, fact)
	return os.WriteFile(path, []byte(updated), 0o644)
}

func normalizeFact(fact string) string {
	fact = strings.TrimSpace(fact)
	for strings.HasPrefix(fact, "-") {
		fact = strings.TrimSpace(strings.TrimPrefix(fact, "-"))
	}
	return fact
}

func splitKeepTrailing(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func findSectionHeader(lines []string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) == sectionHeader {
			return i
		}
	}
	return -1
}

// sectionEnd returns the index one past the section's last non-blank line,
// searching up to the next header (`## `) or the end of file.
func sectionEnd(lines []string, headerIdx int) int {
	last := headerIdx
	for i := headerIdx + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "## ") {
			break
		}
		if trimmed != "" {
			last = i
		}
	}
	return last + 1
}

func appendNewSection(content, fact string) string {
	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	if content != "" {
		b.WriteString("\n")
	}
	b.WriteString(sectionHeader)
	b.WriteString("\n- ")
	b.WriteString(fact)
	return b.String()
}
