package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a protocol, a script
// per role, and optional expectations. Running a scenario compiles and
// projects the protocol, wires an in-memory pipe between every role
// pair, and drives each role's script on its own goroutine.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden traces are stored
	// under testdata/golden/{Name}.golden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Protocol is inline protocol source text. Exactly one of Protocol
	// and ProtocolFile must be set.
	Protocol string `yaml:"protocol,omitempty"`

	// ProtocolFile is a path to a .chor file, relative to the scenario
	// file location when loaded via LoadScenario.
	ProtocolFile string `yaml:"protocol_file,omitempty"`

	// Schema is optional inline CUE payload schema source. When set,
	// every TypeRef must be declared and every sent value is validated
	// before transmission.
	Schema string `yaml:"schema,omitempty"`

	// Roles maps each role name to its script. Every declared protocol
	// role must have a script; projection decides what the script is
	// allowed to do.
	Roles map[string][]Step `yaml:"roles"`

	// SessionIDs optionally fixes each role's session ID for
	// deterministic golden traces. Unlisted roles get "sess-<role>".
	SessionIDs map[string]string `yaml:"session_ids,omitempty"`
}

// Step is one scripted session operation.
type Step struct {
	// Op is one of: send, recv, select, offer, enter, recurse, close,
	// abort.
	Op string `yaml:"op"`

	// Value is the payload for send.
	Value any `yaml:"value,omitempty"`

	// Expect is the expected decoded payload for recv. Compared after
	// JSON normalization; nil means any value is accepted.
	Expect any `yaml:"expect,omitempty"`

	// Branch is the branch index for select.
	Branch int `yaml:"branch,omitempty"`

	// ExpectBranch is the branch index offer must resolve to.
	// Nil means any branch is accepted.
	ExpectBranch *int `yaml:"expect_branch,omitempty"`

	// ExpectError makes the step an error assertion: the operation
	// must fail with this runtime error code (e.g. PROTOCOL_MISMATCH).
	// The session is left consumed; only abort may follow.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file, resolving
// ProtocolFile relative to the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.resolve(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ParseScenario parses inline scenario YAML (tests, mostly).
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) resolve(dir string) error {
	if sc.ProtocolFile == "" {
		return nil
	}
	path := sc.ProtocolFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read protocol %s: %w", sc.ProtocolFile, err)
	}
	sc.Protocol = string(data)
	sc.ProtocolFile = ""
	return nil
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if sc.Protocol == "" {
		return fmt.Errorf("scenario %s: protocol or protocol_file is required", sc.Name)
	}
	if len(sc.Roles) == 0 {
		return fmt.Errorf("scenario %s: at least one role script is required", sc.Name)
	}
	for role, steps := range sc.Roles {
		for i, step := range steps {
			switch step.Op {
			case "send", "recv", "select", "offer", "enter", "recurse", "close", "abort":
			default:
				return fmt.Errorf("scenario %s: role %s step %d: unknown op %q",
					sc.Name, role, i, step.Op)
			}
		}
	}
	return nil
}
