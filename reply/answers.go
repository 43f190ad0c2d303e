package reply

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Answer is one prepared reply. It applies to the requirement whose number
// equals Number, or else whose text contains Match.
type Answer struct {
	Number string `yaml:"number,omitempty"`
	Match  string `yaml:"match,omitempty"`
	Reply  string `yaml:"reply"`
}

// Answers is a Generator backed by a prepared answer file:
//
//	default: 满足
//	answers:
//	  - number: "1"
//	    reply: 完全满足，详见技术方案第三章。
//	  - match: 售后服务
//	    reply: <p>提供7×24小时服务。</p><ul><li>4小时响应</li></ul>
type Answers struct {
	Default string   `yaml:"default,omitempty"`
	Items   []Answer `yaml:"answers"`
}

// LoadAnswers reads an answer file.
func LoadAnswers(path string) (*Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading answers: %w", err)
	}
	var a Answers
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing answers %s: %w", path, err)
	}
	for i, item := range a.Items {
		if item.Number == "" && item.Match == "" {
			return nil, fmt.Errorf("answers %s: entry %d has neither number nor match", path, i+1)
		}
	}
	return &a, nil
}

// Reply returns the first answer for req: by number, then by text, then the
// default.
func (a *Answers) Reply(_ context.Context, req Requirement) (string, error) {
	if req.Number != "" {
		for _, item := range a.Items {
			if item.Number == req.Number {
				return item.Reply, nil
			}
		}
	}
	for _, item := range a.Items {
		if item.Match != "" && strings.Contains(req.Text, item.Match) {
			return item.Reply, nil
		}
	}
	return a.Default, nil
}
