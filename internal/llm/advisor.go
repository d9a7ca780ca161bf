package llm

import (
	"context"
	"time"
)

// Advisor budget per build decision.
const (
	advisorMaxTokens = 256
	advisorTimeout   = 20 * time.Second
)

const advisorPrompt = `You are the steward of a fungal colony. The colony grows by building nodes next to existing ones and loses when bacteria transform its nucleus.

Node types:
- extractor: costs 75, produces nutrients
- storage: costs 100, raises nutrient capacity by 50
- defense: costs 100, produces defense that contains infections

Infected nodes lose health every cycle while defense is spent to contain them. A node at zero health turns into bacteria and infects its neighbors every cycle.

Pick at most one build from the candidate list, or none to save nutrients.

Respond with ONLY valid JSON:
{"action": "build", "rationale": "...", "build": {"x": 435, "y": 315, "type": "extractor"}}
or
{"action": "none", "rationale": "...", "build": null}

The build must be copied exactly from the candidate list.`

// AdviseBuild asks the model to choose the next build for the colony
// described by report. The answer is raw JSON text; callers validate it.
func (c *Client) AdviseBuild(report string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), advisorTimeout)
	defer cancel()
	return c.Complete(ctx, advisorPrompt, report, advisorMaxTokens)
}
