package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables overriding plan files, e.g. COMPOSER_SCHEDULER=loop.
const EnvPrefix = "COMPOSER_"

// Scheduler names accepted in Plan.Scheduler.
const (
	SchedulerGoroutine = "goroutine"
	SchedulerLoop      = "loop"
)

// Edit operations accepted in Edit.Op.
const (
	OpPush    = "push"
	OpUnshift = "unshift"
	OpBefore  = "before"
	OpAfter   = "after"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// Plan describes a Pipeline: the initial stack and edits applied to it in order.
//
//	name: api
//	scheduler: loop
//	stack:
//	  - auth
//	  - use: log
//	    as: log-request
//	  - handle
//	edits:
//	  - op: before
//	    selector: handle
//	    use: [validate]
type Plan struct {
	Name string `yaml:"name"`
	// "goroutine" (default) or "loop"
	Scheduler string `yaml:"scheduler"`
	Stack     []Ref  `yaml:"stack"`
	Edits     []Edit `yaml:"edits"`
}

// Ref is a single stack element: a registered name, optionally added under another selector.
// In YAML it can be written as a plain name or as a mapping with use and as keys.
type Ref struct {
	Use string `yaml:"use"`
	// Selector name of the entry; Use if empty.
	As string `yaml:"as"`
}

// UnmarshalYAML allows a ref to be a string (registered name only) or a struct.
func (ref *Ref) UnmarshalYAML(value *yamlv3.Node) error {
	var nameOnly string
	if err := value.Decode(&nameOnly); err == nil {
		ref.Use = nameOnly

		return nil
	}

	if value.Kind == yamlv3.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			switch key := value.Content[i]; key.Value {
			case "use", "as":
			default:
				return fmt.Errorf("line %d: field %s not found in type plan.Ref", key.Line, key.Value)
			}
		}
	}

	type plain Ref

	var full plain
	if err := value.Decode(&full); err != nil {
		return err
	}

	*ref = Ref(full)

	return nil
}

// Returns selector name the entry is added under.
func (ref Ref) Name() string {
	if ref.As != "" {
		return ref.As
	}

	return ref.Use
}

// Edit is a single mutation of the stack.
type Edit struct {
	Op       string `yaml:"op"`
	Selector string `yaml:"selector"`
	Use      []Ref  `yaml:"use"`
}

// Parse parses a plan from YAML. Unknown fields are rejected at every level.
func Parse(data []byte) (*Plan, error) {
	dec := yamlv3.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return &p, nil
		}

		return nil, fmt.Errorf("parse plan: %w", err)
	}

	return &p, nil
}

// Load reads a plan from a YAML file at path, overridden by EnvPrefix environment variables.
// Nested keys are separated by "__", e.g. COMPOSER_NAME or COMPOSER_SCHEDULER.
func Load(path string) (*Plan, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load plan %q: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load plan environment: %w", err)
	}

	// re-encode so string-or-struct refs are decoded by Ref.UnmarshalYAML
	data, err := yamlv3.Marshal(k.Raw())
	if err != nil {
		return nil, fmt.Errorf("load plan %q: %w", path, err)
	}

	return Parse(data)
}
