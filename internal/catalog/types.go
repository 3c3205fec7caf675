package catalog

import (
	"fmt"
	"sort"
)

type Band string

const (
	BandLow    Band = "LOW"
	BandMedium Band = "MEDIUM"
	BandHigh   Band = "HIGH"
)

func (b Band) Valid() bool {
	switch b {
	case BandLow, BandMedium, BandHigh:
		return true
	}
	return false
}

// Question is one questionnaire item of a process. The matcher identifies
// it by its signal id: "{process_key}_{question_key}".
type Question struct {
	Key    string `json:"key" yaml:"key"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

type Process struct {
	Key       string     `json:"key" yaml:"key"`
	Label     string     `json:"label" yaml:"label"`
	Questions []Question `json:"questions" yaml:"questions"`
}

type BandThreshold struct {
	Band     Band `json:"band" yaml:"band"`
	MaxScore int  `json:"max_score" yaml:"max_score"`
}

type CatalogAction struct {
	ProcessKey      string   `json:"process_key" yaml:"process_key"`
	Band            Band     `json:"band" yaml:"band"`
	ActionKey       string   `json:"action_key" yaml:"action_key"`
	Title           string   `json:"title" yaml:"title"`
	Steps           []string `json:"steps" yaml:"steps"`
	OwnerSuggested  string   `json:"owner_suggested" yaml:"owner_suggested"`
	MetricSuggested string   `json:"metric_suggested" yaml:"metric_suggested"`
	DoneWhen        []string `json:"done_when" yaml:"done_when"`
	RequiredSignals []string `json:"required_signals" yaml:"required_signals"`
}

type ActionCatalog struct {
	Version       string          `json:"version" yaml:"version"`
	LowAnswerMax  int             `json:"low_answer_max" yaml:"low_answer_max"`
	FallbackTitle string          `json:"fallback_title" yaml:"fallback_title"`
	Bands         []BandThreshold `json:"bands" yaml:"bands"`
	Processes     []Process       `json:"processes" yaml:"processes"`
	Actions       []CatalogAction `json:"actions" yaml:"actions"`
}

type CauseClass struct {
	ID               string `json:"id" yaml:"id"`
	Label            string `json:"label" yaml:"label"`
	Description      string `json:"description" yaml:"description"`
	PrimaryMechanism string `json:"primary_mechanism" yaml:"primary_mechanism"`
}

type CauseQuestion struct {
	Key    string `json:"key" yaml:"key"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// WeightRule adds Points[answer] to a cause's score when the question was
// answered with that value. Keys are the literal Likert values "1".."5".
type WeightRule struct {
	CauseID     string         `json:"cause_id" yaml:"cause_id"`
	QuestionKey string         `json:"question_key" yaml:"question_key"`
	Points      map[string]int `json:"points" yaml:"points"`
}

type MechanismAction struct {
	CauseID   string `json:"cause_id" yaml:"cause_id"`
	ActionKey string `json:"action_key" yaml:"action_key"`
	SortOrder int    `json:"sort_order" yaml:"sort_order"`
}

// GapDefinition ties one named weakness to exactly one process/band
// combination and carries everything needed to classify its root cause.
type GapDefinition struct {
	GapID            string            `json:"gap_id" yaml:"gap_id"`
	ProcessKey       string            `json:"process_key" yaml:"process_key"`
	Band             Band              `json:"band" yaml:"band"`
	Title            string            `json:"title" yaml:"title"`
	CauseQuestions   []CauseQuestion   `json:"cause_questions" yaml:"cause_questions"`
	Weights          []WeightRule      `json:"weights" yaml:"weights"`
	TieBreaker       []string          `json:"tie_breaker" yaml:"tie_breaker"`
	MechanismActions []MechanismAction `json:"mechanism_actions" yaml:"mechanism_actions"`
}

type CauseCatalog struct {
	Version string          `json:"version" yaml:"version"`
	Causes  []CauseClass    `json:"causes" yaml:"causes"`
	Gaps    []GapDefinition `json:"gaps" yaml:"gaps"`
}

// Catalog is the validated, immutable pair of reference documents shared
// read-only across requests.
type Catalog struct {
	Actions *ActionCatalog
	Causes  *CauseCatalog

	processByKey map[string]*Process
	actionByKey  map[string]*CatalogAction
	causeByID    map[string]*CauseClass
	gapByID      map[string]*GapDefinition
	gapByProcess map[string]*GapDefinition // key: processKey + "/" + band
}

// New indexes the two documents. Callers own validation: Load is the only
// production entry point and always validates before sharing the catalog.
func New(actions *ActionCatalog, causes *CauseCatalog) *Catalog {
	c := &Catalog{
		Actions:      actions,
		Causes:       causes,
		processByKey: map[string]*Process{},
		actionByKey:  map[string]*CatalogAction{},
		causeByID:    map[string]*CauseClass{},
		gapByID:      map[string]*GapDefinition{},
		gapByProcess: map[string]*GapDefinition{},
	}
	for i := range actions.Processes {
		p := &actions.Processes[i]
		c.processByKey[p.Key] = p
	}
	for i := range actions.Actions {
		a := &actions.Actions[i]
		c.actionByKey[a.ActionKey] = a
	}
	for i := range causes.Causes {
		cc := &causes.Causes[i]
		c.causeByID[cc.ID] = cc
	}
	for i := range causes.Gaps {
		g := &causes.Gaps[i]
		c.gapByID[g.GapID] = g
		c.gapByProcess[g.ProcessKey+"/"+string(g.Band)] = g
	}
	return c
}

func (c *Catalog) ProcessByKey(key string) *Process {
	return c.processByKey[key]
}

func (c *Catalog) ActionByKey(key string) *CatalogAction {
	return c.actionByKey[key]
}

// ActionsFor returns the band-restricted candidates in catalog order.
func (c *Catalog) ActionsFor(processKey string, band Band) []*CatalogAction {
	var out []*CatalogAction
	for i := range c.Actions.Actions {
		a := &c.Actions.Actions[i]
		if a.ProcessKey == processKey && a.Band == band {
			out = append(out, a)
		}
	}
	return out
}

func (c *Catalog) GapByID(gapID string) *GapDefinition {
	return c.gapByID[gapID]
}

func (c *Catalog) GapFor(processKey string, band Band) *GapDefinition {
	return c.gapByProcess[processKey+"/"+string(band)]
}

func (c *Catalog) CauseByID(id string) *CauseClass {
	return c.causeByID[id]
}

// MechanismActionKeysFor returns the cause's mechanism action keys for a
// gap in sort_order, capped at three.
func (c *Catalog) MechanismActionKeysFor(gap *GapDefinition, causeID string) []string {
	var mas []MechanismAction
	for _, ma := range gap.MechanismActions {
		if ma.CauseID == causeID {
			mas = append(mas, ma)
		}
	}
	sort.SliceStable(mas, func(i, j int) bool { return mas[i].SortOrder < mas[j].SortOrder })
	if len(mas) > 3 {
		mas = mas[:3]
	}
	keys := make([]string, 0, len(mas))
	for _, ma := range mas {
		keys = append(keys, ma.ActionKey)
	}
	return keys
}

// BandFor resolves a numeric process score to its maturity band.
func (c *Catalog) BandFor(score int) Band {
	for _, t := range c.Actions.Bands {
		if score <= t.MaxScore {
			return t.Band
		}
	}
	return c.Actions.Bands[len(c.Actions.Bands)-1].Band
}

// CauseQuestionKeys lists the gap's diagnostic question keys in catalog order.
func (g *GapDefinition) CauseQuestionKeys() []string {
	keys := make([]string, 0, len(g.CauseQuestions))
	for _, q := range g.CauseQuestions {
		keys = append(keys, q.Key)
	}
	return keys
}

// SignalID builds the "{process}_{question}" identifier used by the matcher.
func SignalID(processKey, questionKey string) string {
	return fmt.Sprintf("%s_%s", processKey, questionKey)
}
