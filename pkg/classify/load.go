// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"io"
	"os"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Fallback string `yaml:"fallback"`
	Rules    []struct {
		Pattern  string `yaml:"pattern"`
		Category string `yaml:"category"`
	} `yaml:"rules"`
}

// LoadTable parses a classification rule table from YAML. File order is
// match precedence. Unknown categories, unknown fields, and patterns that do
// not compile are load-time errors so deployments fail fast on bad rules.
func LoadTable(r io.Reader) (Table, error) {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	var f ruleFile
	if err := d.Decode(&f); err != nil {
		return Table{}, errors.Wrap(err, "decoding rule table")
	}
	if f.Fallback == "" {
		return Table{}, errors.New("rule table: fallback category is required")
	}
	fallback := Category(f.Fallback)
	if !Known(fallback) {
		return Table{}, errors.Errorf("rule table: unknown fallback category %q", f.Fallback)
	}
	t := Table{Fallback: fallback}
	for i, rs := range f.Rules {
		if rs.Pattern == "" {
			return Table{}, errors.Errorf("rule %d: pattern is required", i)
		}
		re, err := regexp.Compile(rs.Pattern)
		if err != nil {
			return Table{}, errors.Wrapf(err, "rule %d: compiling pattern", i)
		}
		c := Category(rs.Category)
		if !Known(c) {
			return Table{}, errors.Errorf("rule %d: unknown category %q", i, rs.Category)
		}
		t.Rules = append(t.Rules, Rule{Pattern: re, Category: c})
	}
	return t, nil
}

// LoadTableFile reads a rule table from a YAML file.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, errors.Wrapf(err, "opening rule table %s", path)
	}
	defer f.Close()
	return LoadTable(f)
}
