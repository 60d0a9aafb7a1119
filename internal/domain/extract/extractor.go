package extract

import (
	"regexp"
	"sort"
	"strings"
)

// ValueSets walks every valueSet element below element and returns the
// distinct, non-empty groups of references in document order.
//
// Every values element of a group is a reference, including those nested
// under exception; the exception codes additionally form the group's shared
// pruning set. Two groups are the same when their ordered (identifier,
// display, flag, exceptions) tuples are identical. Ignore-listed references
// are dropped before comparison.
func ValueSets(element *Node) []ValueSet {
	var out []ValueSet
	seen := make(map[string]bool)

	for _, group := range element.Find("valueSet") {
		vs := valueSet(group)
		if len(vs) == 0 {
			continue
		}
		k := vs.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, vs)
	}
	return out
}

func valueSet(group *Node) ValueSet {
	exceptions := exceptionCodes(group)

	var vs ValueSet
	for _, values := range group.Find("values") {
		id, ok := values.ChildText("value")
		if !ok {
			id = Missing
		}
		if IsIgnored(id) {
			continue
		}
		display, ok := values.ChildText("displayName")
		if !ok {
			display = Missing
		}
		flag, _ := values.ChildText("includeChildren")

		vs = append(vs, RawReference{
			IdentifierText:     id,
			DisplayTerm:        display,
			IncludeDescendants: flag == "true",
			Exceptions:         exceptions,
		})
	}
	return vs
}

// exceptionCodes collects exception//values/value texts for a group, sorted
// and de-duplicated.
func exceptionCodes(group *Node) []string {
	set := make(map[string]bool)
	for _, exc := range group.Find("exception") {
		for _, values := range exc.Find("values") {
			for _, c := range values.Children {
				if c.Is("value") {
					set[strings.TrimSpace(c.Text)] = true
				}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	codes := make([]string, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Reports returns every report element of the document with its value sets.
func Reports(root *Node) []Report {
	var out []Report
	for _, r := range root.Find("report") {
		name := ReportName(r)
		out = append(out, Report{
			Name:       name,
			OutputName: OutputName(name),
			ValueSets:  ValueSets(r),
		})
	}
	return out
}

// ReportName returns the report's own name element, falling back to the
// first nested name.
func ReportName(report *Node) string {
	if name, ok := report.ChildText("name"); ok {
		return name
	}
	if n := report.First("name"); n != nil {
		return strings.TrimSpace(n.Text)
	}
	return Missing
}

var bracketed = regexp.MustCompile(`\[(.*?)\]`)

const illegalFilenameChars = `<>:"/\|?*`

// OutputName derives the file-safe short name of a report: the last bracketed
// substring of its name, or the whole name with illegal filename characters
// replaced by underscores.
func OutputName(name string) string {
	if m := bracketed.FindAllStringSubmatch(name, -1); len(m) > 0 {
		return SanitizeFilename(m[len(m)-1][1])
	}
	return SanitizeFilename(name)
}

// SanitizeFilename replaces characters that are illegal in Windows filenames.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalFilenameChars, r) {
			return '_'
		}
		return r
	}, name)
}
