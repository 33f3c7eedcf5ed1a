package claims

import (
	"errors"
	"fmt"
	"strings"

	"github.com/auditmos/dianoia/logging"
)

type Action string

const (
	ActionSupport Action = "support"
	ActionRefute  Action = "refute"
	ActionUnpack  Action = "unpack"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrEmptyClaim    = errors.New("claim cannot be empty")
)

const systemPrompt = "You help people map arguments. Answer with a single claim of one or two sentences. " +
	"Do not add a preamble, quotes, numbering or explanation."

var promptTemplates = map[Action]string{
	ActionSupport: "Write a claim that gives the strongest reason to believe the following claim.\n\nClaim: %s",
	ActionRefute:  "Write a claim that gives the strongest reason to doubt the following claim.\n\nClaim: %s",
	ActionUnpack:  "Write a claim that states an unspoken assumption the following claim depends on.\n\nClaim: %s",
}

func Actions() []Action {
	return []Action{ActionSupport, ActionRefute, ActionUnpack}
}

// ParseAction accepts an action name in any case, surrounded by spaces.
func ParseAction(s string) (Action, error) {
	want := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range Actions() {
		if a == want {
			return a, nil
		}
	}
	return "", unknownAction(s)
}

// BuildPrompt renders the user prompt for action applied to claim.
func BuildPrompt(action Action, claim string) (string, error) {
	tmpl, ok := promptTemplates[action]
	if !ok {
		return "", unknownAction(string(action))
	}
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return "", logging.WrapErrorWithType("build prompt", ErrEmptyClaim, "ValidationError")
	}
	return fmt.Sprintf(tmpl, claim), nil
}

func unknownAction(action string) error {
	return logging.WrapErrorWithType("build prompt",
		fmt.Errorf("%w %q", ErrUnknownAction, action), "UnknownActionError")
}
