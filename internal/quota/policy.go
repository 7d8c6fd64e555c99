package quota

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Plan string

const (
	PlanUnsubscribed Plan = "unsubscribed"
	PlanBasic        Plan = "basic"
	PlanStandard     Plan = "standard"
	PlanPremium      Plan = "premium"
)

// Action is a guarded action family.
type Action string

const (
	ActionMission Action = "mission"
	ActionContact Action = "contact"
)

func (a Action) Valid() bool {
	return a == ActionMission || a == ActionContact
}

// PlanSpec describes a subscription plan and its monthly allowances.
type PlanSpec struct {
	Plan       Plan   `json:"plan" yaml:"-"`
	Name       string `json:"name" yaml:"name"`
	PriceCents int64  `json:"price_cents" yaml:"price_cents"`
	Missions   int    `json:"missions_per_month" yaml:"missions"`
	Contacts   int    `json:"contacts_per_month" yaml:"contacts"`
}

func (p PlanSpec) limit(action Action) int {
	switch action {
	case ActionMission:
		return p.Missions
	case ActionContact:
		return p.Contacts
	default:
		return 0
	}
}

var order = []Plan{PlanBasic, PlanStandard, PlanPremium}

// Table maps plans to monthly limits. It is read-only after construction.
type Table struct {
	plans map[Plan]PlanSpec
}

func DefaultTable() *Table {
	return &Table{plans: map[Plan]PlanSpec{
		PlanBasic:    {Plan: PlanBasic, Name: "Basic", PriceCents: 9900, Missions: 3, Contacts: 10},
		PlanStandard: {Plan: PlanStandard, Name: "Standard", PriceCents: 24900, Missions: 10, Contacts: 30},
		PlanPremium:  {Plan: PlanPremium, Name: "Premium", PriceCents: 49900, Missions: 30, Contacts: 100},
	}}
}

// Limit returns the monthly allowance of action for plan. Unsubscribed and
// unknown plans or actions get 0.
func (t *Table) Limit(plan Plan, action Action) int {
	if plan == PlanUnsubscribed {
		return 0
	}
	spec, ok := t.plans[plan]
	if !ok {
		return 0
	}
	if l := spec.limit(action); l > 0 {
		return l
	}
	return 0
}

func (t *Table) Spec(plan Plan) (PlanSpec, bool) {
	spec, ok := t.plans[plan]
	return spec, ok
}

// Catalogue lists the purchasable plans, cheapest first.
func (t *Table) Catalogue() []PlanSpec {
	out := make([]PlanSpec, 0, len(order))
	for _, p := range order {
		if spec, ok := t.plans[p]; ok {
			out = append(out, spec)
		}
	}
	return out
}

// ParsePlan maps a stored plan name to a Plan. Unrecognised names map to
// PlanUnsubscribed.
func ParsePlan(s string) Plan {
	switch p := Plan(s); p {
	case PlanBasic, PlanStandard, PlanPremium:
		return p
	default:
		return PlanUnsubscribed
	}
}

type fileFormat struct {
	Plans map[string]PlanSpec `yaml:"plans"`
}

// LoadTable reads plan overrides from a YAML file on top of DefaultTable.
//
//	plans:
//	  basic:
//	    name: Basic
//	    price_cents: 9900
//	    missions: 3
//	    contacts: 10
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quota file: %w", err)
	}
	return ParseTable(data)
}

func ParseTable(data []byte) (*Table, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse quota file: %w", err)
	}

	t := DefaultTable()
	for name, spec := range f.Plans {
		plan := Plan(name)
		if _, ok := t.plans[plan]; !ok {
			return nil, fmt.Errorf("quota file: unknown plan %q", name)
		}
		if spec.Missions < 0 || spec.Contacts < 0 || spec.PriceCents < 0 {
			return nil, fmt.Errorf("quota file: plan %q has negative values", name)
		}
		spec.Plan = plan
		if spec.Name == "" {
			spec.Name = t.plans[plan].Name
		}
		t.plans[plan] = spec
	}
	return t, nil
}
