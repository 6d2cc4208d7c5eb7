package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/imkarma/logiri/internal/errors"
)

// ProposedTask is one task object from a reply's directive block. Fields
// are loose: priority may be any string and estimated_hours a number or a
// numeric string.
type ProposedTask struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	AssignedTo     string          `json:"assigned_to"`
	Priority       string          `json:"priority"`
	EstimatedHours json.RawMessage `json:"estimated_hours"`
	RecheckType    string          `json:"recheck_type"`
	DueDate        string          `json:"due_date"`
	RuleID         string          `json:"rule_id"`
}

var directiveRe = regexp.MustCompile(`(?s)<!--\s*TASKS_JSON\s*-->(.*?)<!--\s*/TASKS_JSON\s*-->`)

// fenceRe matches a markdown code fence some models wrap around the JSON.
var fenceRe = regexp.MustCompile("^```[a-zA-Z]*\\s*|\\s*```$")

// ParseTaskDirective removes every directive block from reply and returns
// the remaining text along with the tasks from the first block. A reply
// without a block yields no tasks. Malformed JSON yields no tasks and an
// ErrParse; the visible text is still returned.
func ParseTaskDirective(reply string) (string, []ProposedTask, error) {
	m := directiveRe.FindStringSubmatch(reply)
	visible := strings.TrimRight(directiveRe.ReplaceAllString(reply, ""), " \t\r\n")
	if m == nil {
		return visible, nil, nil
	}

	raw := fenceRe.ReplaceAllString(strings.TrimSpace(m[1]), "")
	if raw == "" {
		return visible, nil, nil
	}

	var tasks []ProposedTask
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		// A single object instead of an array.
		var one ProposedTask
		if json.Unmarshal([]byte(raw), &one) != nil {
			return visible, nil, errors.Wrapf(errors.ErrParse, "task directive: %v", err)
		}
		tasks = []ProposedTask{one}
	}
	return visible, tasks, nil
}
