package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/repository"
)

// Scenario defines a repository scenario: a flow of operations against a
// fresh repository and assertions on the events they fire and the state
// they leave behind.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is an optional CUE seed file or directory applied before setup.
	// Relative paths resolve against the scenario file.
	Seed string `yaml:"seed,omitempty"`

	// Setup steps run before the flow. Their events are not traced and
	// any failure aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the traced part of the scenario.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single repository operation.
type Step struct {
	// Op names the operation, e.g. "create_entry".
	Op string `yaml:"op"`

	// As is the user name the step acts as; empty acts as admin.
	As string `yaml:"as,omitempty"`

	// Args are the operation arguments. A string "$name" is replaced by
	// the value an earlier step bound to name.
	Args map[string]any `yaml:"args,omitempty"`

	// Bind stores the step's result (a context id, entry or principal URI)
	// under this name.
	Bind string `yaml:"bind,omitempty"`

	// Expect, when set, requires the step to fail with the given error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected failure of a step.
type ExpectClause struct {
	// Error is the repository error code, e.g. "AUTHORIZATION".
	Error string `yaml:"error"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_order": kinds appear in this relative order
	// - "event_count": a kind appears exactly Count times
	// - "fill_level": a context holds exactly Bytes payload bytes
	// - "children": a list holds exactly Entries, in order
	// - "rights": a principal holds exactly Rights on an entry
	Type string `yaml:"type"`

	// Kinds is the expected event order (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Kind and Count are used by event_count. Entry optionally narrows the
	// count to one entry.
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Context is used by fill_level.
	Context string `yaml:"context,omitempty"`
	Bytes   int64  `yaml:"bytes,omitempty"`

	// List and Entries are used by children.
	List    string   `yaml:"list,omitempty"`
	Entries []string `yaml:"entries,omitempty"`

	// Entry, As and Rights are used by rights and event_count.
	Entry  string   `yaml:"entry,omitempty"`
	As     string   `yaml:"as,omitempty"`
	Rights []string `yaml:"rights,omitempty"`
}

// Assertion type constants.
const (
	AssertEventOrder = "event_order"
	AssertEventCount = "event_count"
	AssertFillLevel  = "fill_level"
	AssertChildren   = "children"
	AssertRights     = "rights"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Seed != "" && !filepath.IsAbs(scenario.Seed) {
		scenario.Seed = filepath.Join(filepath.Dir(path), scenario.Seed)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// Discover returns the scenario files under dir matching **/*.yaml or
// **/*.yml, sorted.
func Discover(dir string) ([]string, error) {
	fsys := os.DirFS(dir)
	var out []string
	for _, pattern := range []string{"**/*.yaml", "**/*.yml"} {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("discover scenarios: %w", err)
		}
		for _, m := range matches {
			out = append(out, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	sort.Strings(out)
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Seed != "" {
		if _, err := os.Stat(s.Seed); os.IsNotExist(err) {
			return fmt.Errorf("seed not found: %s", s.Seed)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot expect failures", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(where string, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("%s: op is required", where)
	}
	if _, ok := operations[step.Op]; !ok {
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if step.Expect != nil && step.Expect.Error == "" {
		return fmt.Errorf("%s.expect: error is required", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for event_order", index)
		}
		for _, k := range a.Kinds {
			if _, err := events.ParseKind(k); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertEventCount:
		if _, err := events.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertFillLevel:
		if a.Context == "" {
			return fmt.Errorf("assertions[%d]: context is required for fill_level", index)
		}
	case AssertChildren:
		if a.List == "" {
			return fmt.Errorf("assertions[%d]: list is required for children", index)
		}
	case AssertRights:
		if a.Entry == "" {
			return fmt.Errorf("assertions[%d]: entry is required for rights", index)
		}
		for _, r := range a.Rights {
			if _, err := repository.ParseAccessProperty(r); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
