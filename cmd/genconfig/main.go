// Package main implements the genconfig tool that regenerates
// keepalived.default.toml from config.DefaultConfig().
//
// go generate invokes it via the directive in internal/config/config.go.
// The generated file is embedded by configdata.go and written to the
// data directory on first run, so it is the operator-facing form of the
// defaults and carries the comments from config.ConfigDocs.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mscbg/keepalived/internal/config"
)

func main() {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(config.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}

	result := annotate(raw.String())

	// go generate runs from internal/config/; ../../ is the repo root
	// where configdata.go embeds the file.
	outPath := "../../keepalived.default.toml"
	if err := os.WriteFile(outPath, []byte(result), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote keepalived.default.toml\n")
}

// annotate turns the encoder's bare TOML into the commented default
// config: a banner header, a separator per section, the ConfigDocs
// comment above each documented key, and commented alternatives below
// it. Indentation from the encoder is stripped throughout.
func annotate(encoded string) string {
	out := []string{
		"# ///////////////////////////////////////////////",
		"# Keepalived Configuration",
		"# ///////////////////////////////////////////////",
		"",
	}

	// sectionStack holds the dotted path of the section being emitted;
	// emittedKeys records which ConfigDocs paths appeared so omitted
	// (zero-valued, omitempty) fields can be injected as comments.
	var sectionStack []string
	emittedKeys := map[string]bool{}

	for _, line := range strings.Split(encoded, "\n") {
		trimmed := strings.TrimSpace(line)

		// The encoder's blank lines are dropped; spacing is re-managed
		// around section separators instead.
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[[") {
			// Close out the previous section before switching.
			injectOmitted(&out, sectionStack, emittedKeys)

			section := strings.Trim(trimmed, "[] ")
			sectionStack = parseSectionPath(section)

			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(section)), "")
			if doc, ok := config.ConfigDocs[section]; ok && doc.Comment != "" {
				for _, cl := range strings.Split(doc.Comment, "\n") {
					out = append(out, "# "+cl)
				}
			}
			out = append(out, trimmed)
			continue
		}

		if !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}

		key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
		fullPath := key
		if len(sectionStack) > 0 {
			fullPath = strings.Join(sectionStack, ".") + "." + key
		}
		emittedKeys[fullPath] = true

		doc, ok := config.ConfigDocs[fullPath]
		if !ok {
			// No doc entry; emit the line as-is.
			out = append(out, trimmed)
			continue
		}
		if doc.Comment != "" {
			for _, cl := range strings.Split(doc.Comment, "\n") {
				out = append(out, "# "+cl)
			}
		}
		out = append(out, trimmed)
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
	}

	injectOmitted(&out, sectionStack, emittedKeys)

	return strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
}

// injectOmitted appends commented entries for ConfigDocs keys of the
// current section that the encoder never produced, which happens when a
// field carries omitempty and holds its zero value. Every documented
// option therefore shows up in the generated file. Keys are sorted so
// regeneration is deterministic.
func injectOmitted(out *[]string, sectionStack []string, emitted map[string]bool) {
	if len(sectionStack) == 0 {
		return
	}
	prefix := strings.Join(sectionStack, ".") + "."

	var omitted []string
	for path := range config.ConfigDocs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := config.ConfigDocs[path]
		*out = append(*out, "")
		if doc.Comment != "" {
			for _, cl := range strings.Split(doc.Comment, "\n") {
				*out = append(*out, "# "+cl)
			}
		}
		for _, alt := range doc.Alternatives {
			*out = append(*out, "# "+alt)
		}
		emitted[path] = true
	}
}

// parseSectionPath splits a dotted section header such as
// "scripts.allow" into its segments.
func parseSectionPath(section string) []string {
	return strings.Split(section, ".")
}

// sectionName capitalizes the last dotted segment of a section header
// for use in the separator banner ("scripts.allow" yields "Allow").
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if len(last) == 0 {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
