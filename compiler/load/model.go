package load

import (
	"regexp"
	"strings"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/schema"
)

var (
	modelHeaderRe = regexp.MustCompile(`(?s)\bexport\s+(?:default\s+)?(?:interface|class)\s+(\w+)[^{]*\{`)
	propertyRe    = regexp.MustCompile(`^\s*(?:(?:public|readonly)\s+)*(\w+)(\?)?\s*:\s*([^;=]+?)\s*(?:=[^;]*)?;?\s*(?://\s*(.*))?$`)
	pkTagRe       = regexp.MustCompile(`@pk\b`)
	fkTagRe       = regexp.MustCompile(`@fk\s+(\w+)`)
)

// ParseModel parses a client data-model declaration:
//
//	export interface Customer {
//		customerId: number; // @pk
//		regionId?: number;  // @fk Region
//	}
//
// A property tagged @pk is the primary key, falling back to a property named
// "id". Tagged @fk properties reference the named model.
func ParseModel(text string) (*schema.Model, error) {
	loc := modelHeaderRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, zgen.NewParseError("", "could not locate exported interface or class", nil)
	}
	m := &schema.Model{
		Name:        text[loc[2]:loc[3]],
		ForeignKeys: make(map[string]string),
	}
	open := loc[1] - 1
	end := matchBrace(text, open)
	if end < 0 {
		return nil, zgen.NewParseError(m.Name, "unbalanced model body", nil)
	}
	for _, line := range strings.Split(text[open+1:end], "\n") {
		pm := propertyRe.FindStringSubmatch(line)
		if pm == nil || strings.Contains(pm[3], "(") {
			continue
		}
		p := &schema.Property{
			Name:     pm[1],
			Type:     strings.TrimSpace(pm[3]),
			Optional: pm[2] == "?" || strings.Contains(pm[3], "null") || strings.Contains(pm[3], "undefined"),
		}
		m.Properties = append(m.Properties, p)
		switch tag := pm[4]; {
		case pkTagRe.MatchString(tag):
			m.PrimaryKey = p.Name
		case fkTagRe.MatchString(tag):
			m.ForeignKeys[p.Name] = fkTagRe.FindStringSubmatch(tag)[1]
		}
	}
	if m.PrimaryKey == "" {
		for _, p := range m.Properties {
			if strings.EqualFold(p.Name, "id") {
				m.PrimaryKey = p.Name
				break
			}
		}
	}
	if m.PrimaryKey == "" {
		return nil, zgen.NewParseError(m.Name, "no primary key property", nil)
	}
	return m, nil
}

func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
