// Package playbook holds the per-phase action catalog: the objective shown as
// recommended_action, rationale text for each classification reason, and the
// call scripts reps follow.
package playbook

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/account-strategy/internal/model"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog maps phases to playbooks and reason codes to display text.
type Catalog struct {
	Reasons map[string]string   `yaml:"reasons"`
	Phases  map[string]Playbook `yaml:"phases"`
}

// Playbook is the guidance for one phase.
type Playbook struct {
	Title         string    `yaml:"title" json:"title"`
	Objective     string    `yaml:"objective" json:"objective"`
	Why           string    `yaml:"why" json:"why"`
	TargetProfile string    `yaml:"target_profile" json:"target_profile"`
	Intent        string    `yaml:"intent" json:"intent"`
	Assumptions   string    `yaml:"assumptions,omitempty" json:"assumptions,omitempty"`
	Steps         []Step    `yaml:"steps,omitempty" json:"steps,omitempty"`
	FollowUp      *FollowUp `yaml:"follow_up,omitempty" json:"follow_up,omitempty"`
}

// Step is one stage of a call script.
type Step struct {
	Name   string `yaml:"name" json:"name"`
	Script string `yaml:"script" json:"script"`
	Why    string `yaml:"why" json:"why"`
}

// FollowUp is the email sent after the call.
type FollowUp struct {
	Subject string `yaml:"subject" json:"subject"`
	Body    string `yaml:"body" json:"body"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	c := &Catalog{}
	if err := decode(defaultYAML, c); err != nil {
		return nil, eris.Wrap(err, "playbook: parse default catalog")
	}
	return c, nil
}

// Load returns the built-in catalog with the file at path applied on top.
// Phases and reasons named in the file replace the built-in entries whole;
// anything it omits keeps the default. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "playbook: read catalog %s", path)
	}
	if err := decode(data, c); err != nil {
		return nil, eris.Wrapf(err, "playbook: parse catalog %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// The YAML has a top-level "playbook" key.
func decode(data []byte, c *Catalog) error {
	wrapper := struct {
		Playbook *Catalog `yaml:"playbook"`
	}{Playbook: c}
	return yaml.Unmarshal(data, &wrapper)
}

// Validate checks that every phase has an objective and every reason code
// has display text.
func (c *Catalog) Validate() error {
	var errs []string
	for _, p := range model.Phases {
		pb, ok := c.Phases[string(p)]
		if !ok || pb.Objective == "" {
			errs = append(errs, fmt.Sprintf("phase %s has no objective", p))
		}
	}
	for _, r := range model.PhaseReasons {
		if c.Reasons[string(r)] == "" {
			errs = append(errs, fmt.Sprintf("reason %s has no text", r))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("playbook: catalog validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Get returns the playbook for a phase.
func (c *Catalog) Get(p model.Phase) (Playbook, bool) {
	pb, ok := c.Phases[string(p)]
	return pb, ok
}

// Action returns the phase objective used as recommended_action.
func (c *Catalog) Action(p model.Phase) string {
	return c.Phases[string(p)].Objective
}

// Reason returns display text for a reason code, falling back to the code.
func (c *Catalog) Reason(r model.PhaseReason) string {
	if s, ok := c.Reasons[string(r)]; ok && s != "" {
		return s
	}
	return string(r)
}
