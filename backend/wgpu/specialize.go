// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/progc/driver"
)

// overrideDecl matches a WGSL pipeline-overridable constant declaration:
//
//	@id(3) override samples: i32 = 4;
//
// Submatches: indentation, id, name, declared type.
var overrideDecl = regexp.MustCompile(
	`(?m)^([ \t]*)(?:@id\(\s*(\d+)\s*\)\s*)?override\s+([A-Za-z_][A-Za-z0-9_]*)\s*(?::\s*([A-Za-z_][A-Za-z0-9_]*))?\s*(?:=[^;]*)?;`)

// moduleDecl matches the start of an unindented module-scope declaration
// other than override. Submatch: the declared name.
var moduleDecl = regexp.MustCompile(
	`(?m)^(?:@[A-Za-z_][A-Za-z0-9_]*(?:\([^)]*\))?\s*)*(?:const|var(?:<[^>]*>)?|fn|struct|alias)\s+([A-Za-z_][A-Za-z0-9_]*)`)

type overrideSite struct {
	start, end int
	indent     string
	id         string
	name       string
	typ        string
}

// Specialize bakes specialization constants into WGSL source.
//
// A constant matching an override declaration, by name or by @id when its
// name is empty, turns that declaration into a const declaration. A named
// constant without a declaration is prepended as a new const, unless the
// module already declares something with that name. Values must be
// bool, int32, uint32 or finite float32 and must agree with the declared
// type.
func Specialize(source string, constants []driver.SpecializationConstant) (string, error) {
	if len(constants) == 0 {
		return source, nil
	}

	var sites []overrideSite
	for _, m := range overrideDecl.FindAllStringSubmatchIndex(source, -1) {
		site := overrideSite{start: m[0], end: m[1], indent: source[m[2]:m[3]], name: source[m[6]:m[7]]}
		if m[4] >= 0 {
			site.id = source[m[4]:m[5]]
		}
		if m[8] >= 0 {
			site.typ = source[m[8]:m[9]]
		}
		sites = append(sites, site)
	}

	var declared map[string]bool
	replaced := make(map[int]string, len(constants))
	var header strings.Builder
	for _, c := range constants {
		typ, lit, err := wgslLiteral(c.Value)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrSpecialization, constantName(c), err)
		}
		i := findSite(sites, c)
		if i < 0 {
			if c.Name == "" {
				return "", fmt.Errorf("%w: no override declared with @id(%d)", ErrSpecialization, c.ID)
			}
			if declared == nil {
				declared = moduleNames(source)
			}
			if declared[c.Name] {
				return "", fmt.Errorf("%w: %s is already declared and is not an override", ErrSpecialization, c.Name)
			}
			fmt.Fprintf(&header, "const %s: %s = %s;\n", c.Name, typ, lit)
			continue
		}
		site := sites[i]
		if site.typ != "" && site.typ != typ {
			return "", fmt.Errorf("%w: %s: %s value for %s override", ErrSpecialization, site.name, typ, site.typ)
		}
		replaced[i] = fmt.Sprintf("%sconst %s: %s = %s;", site.indent, site.name, typ, lit)
	}

	var b strings.Builder
	b.Grow(header.Len() + len(source))
	b.WriteString(header.String())
	last := 0
	for i, site := range sites {
		decl, ok := replaced[i]
		if !ok {
			continue
		}
		b.WriteString(source[last:site.start])
		b.WriteString(decl)
		last = site.end
	}
	b.WriteString(source[last:])
	return b.String(), nil
}

func moduleNames(source string) map[string]bool {
	names := make(map[string]bool)
	for _, m := range moduleDecl.FindAllStringSubmatch(source, -1) {
		names[m[1]] = true
	}
	return names
}

func findSite(sites []overrideSite, c driver.SpecializationConstant) int {
	id := strconv.FormatUint(uint64(c.ID), 10)
	for i, s := range sites {
		if c.Name != "" && s.name == c.Name {
			return i
		}
		if c.Name == "" && s.id != "" {
			// Normalize leading zeros in @id(007).
			if n, err := strconv.ParseUint(s.id, 10, 32); err == nil && strconv.FormatUint(n, 10) == id {
				return i
			}
		}
	}
	return -1
}

func constantName(c driver.SpecializationConstant) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("@id(%d)", c.ID)
}

// wgslLiteral returns the WGSL type and literal of a constant value.
func wgslLiteral(v any) (typ, lit string, err error) {
	switch v := v.(type) {
	case bool:
		return "bool", strconv.FormatBool(v), nil
	case int32:
		return "i32", strconv.FormatInt(int64(v), 10) + "i", nil
	case uint32:
		return "u32", strconv.FormatUint(uint64(v), 10) + "u", nil
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", "", fmt.Errorf("value %v is not finite", v)
		}
		s := strconv.FormatFloat(f, 'g', -1, 32)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return "f32", s + "f", nil
	default:
		return "", "", fmt.Errorf("unsupported type %T", v)
	}
}
