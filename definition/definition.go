// Package definition loads async function configs from YAML.
//
//	operations:
//	  save:
//	    start: SAVE
//	    resolve: SAVE_SUCCESS
//	    reject:
//	      type: SAVE_FAILURE
//	      when: payload?.code >= 500
//	    payload: payload.record
//	    error: payload.message
//
// Expressions are expr-lang programs. Variables: tag (the message type), payload,
// meta (meta.id) and message (the whole message as a map).
package definition

import (
	"fmt"
	"os"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/hashicorp/go-multierror"
	"github.com/yaoapp/relay/listener/types"
	"github.com/yaoapp/relay/logger"
	"gopkg.in/yaml.v3"
)

var log = logger.New("definition")

// File is the document root.
type File struct {
	Operations map[string]*Definition `yaml:"operations"`
}

// Definition declares one async function.
type Definition struct {
	Name    string  `yaml:"-"`
	Start   string  `yaml:"start"`
	Resolve Matcher `yaml:"resolve"`
	Reject  Matcher `yaml:"reject"`
	Payload string  `yaml:"payload,omitempty"` // expression extracting the resolve value
	Error   string  `yaml:"error,omitempty"`   // expression extracting the reject reason

	resolve     types.Matcher
	reject      types.Matcher
	payloadProg *vm.Program
	errorProg   *vm.Program
}

// Matcher is a scalar tag, or a mapping with a tag and/or a `when` expression.
// With both set, a message matching either one matches.
type Matcher struct {
	Type string `yaml:"type,omitempty"`
	When string `yaml:"when,omitempty"`
}

// UnmarshalYAML accepts `resolve: TAG` as well as the mapping form.
func (m *Matcher) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		m.Type = node.Value
		return nil
	}
	type plain Matcher
	return node.Decode((*plain)(m))
}

// IsZero reports whether nothing was declared.
func (m Matcher) IsZero() bool {
	return m.Type == "" && m.When == ""
}

// Set is a validated collection of definitions keyed by name.
type Set map[string]*Definition

// Load reads and compiles a definition file.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("definition: %s: %w", path, err)
	}
	log.Debug("loaded %d operations from %s", len(set), path)
	return set, nil
}

// Parse compiles definitions from YAML. Every invalid definition is reported.
func Parse(data []byte) (Set, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Operations) == 0 {
		return nil, fmt.Errorf("no operations defined")
	}

	var errs *multierror.Error
	set := make(Set, len(file.Operations))
	for name, def := range file.Operations {
		if def == nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: empty definition", name))
			continue
		}
		def.Name = name
		if err := def.compile(); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		set[name] = def
	}

	if err := errs.ErrorOrNil(); err != nil {
		errs.ErrorFormat = listFormat
		return nil, errs
	}
	return set, nil
}

// Names returns the definition names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the listener config this definition describes.
func (d *Definition) Config() types.Config {
	cfg := types.Config{
		Start:   types.StartTag(d.Start),
		Resolve: d.resolve,
		Reject:  d.reject,
	}
	if d.payloadProg != nil {
		cfg.GetPayload = extractor(d.payloadProg)
	}
	if d.errorProg != nil {
		cfg.GetError = extractor(d.errorProg)
	}
	return cfg
}

func (d *Definition) compile() error {
	var errs *multierror.Error
	if d.Start == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s: start is required", d.Name))
	}
	if d.Resolve.IsZero() && d.Reject.IsZero() {
		errs = multierror.Append(errs, fmt.Errorf("%s: resolve or reject is required", d.Name))
	}

	var err error
	if d.resolve, err = compileMatcher(d.Resolve); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: resolve: %w", d.Name, err))
	}
	if d.reject, err = compileMatcher(d.Reject); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: reject: %w", d.Name, err))
	}
	if d.Payload != "" {
		if d.payloadProg, err = expr.Compile(d.Payload); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: payload: %w", d.Name, err))
		}
	}
	if d.Error != "" {
		if d.errorProg, err = expr.Compile(d.Error); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: error: %w", d.Name, err))
		}
	}

	if errs != nil {
		errs.ErrorFormat = listFormat
	}
	return errs.ErrorOrNil()
}

// envOf builds the expression variables for msg.
func envOf(msg *types.Message) map[string]any {
	m := msg.Map()
	return map[string]any{
		"tag":     msg.Type,
		"payload": msg.Payload,
		"meta":    m["meta"],
		"message": m,
	}
}

func compileMatcher(m Matcher) (types.Matcher, error) {
	if m.When == "" {
		return types.ByTag(m.Type), nil
	}

	program, err := expr.Compile(m.When, expr.AsBool())
	if err != nil {
		return types.Matcher{}, err
	}

	tag := m.Type
	return types.ByPredicate(func(msg *types.Message) bool {
		if tag != "" && msg.Type == tag {
			return true
		}
		out, err := expr.Run(program, envOf(msg))
		if err != nil {
			log.Trace("when %q on %s: %v", m.When, msg.Type, err)
			return false
		}
		ok, _ := out.(bool)
		return ok
	}), nil
}

func extractor(program *vm.Program) types.Extract {
	return func(msg *types.Message) any {
		out, err := expr.Run(program, envOf(msg))
		if err != nil {
			log.Warn("extract on %s: %v", msg.Type, err)
			return nil
		}
		return out
	}
}

func listFormat(errs []error) string {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	out := fmt.Sprintf("%d errors:", len(errs))
	for _, err := range errs {
		out += "\n  * " + err.Error()
	}
	return out
}
