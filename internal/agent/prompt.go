package agent

import (
	"fmt"
	"strings"
	"time"
)

// PromptInfo carries the per-turn context layered into the system
// prompt on top of the agent's standing instructions.
type PromptInfo struct {
	UserName string
	// ForceFullWorkflow tells the agent the previous problem is done
	// and the full triage workflow must run again from the top, even
	// though earlier turns may still be visible in the history.
	ForceFullWorkflow bool
}

// BuildSystemPrompt assembles the system prompt from layered context.
func (a *Agent) BuildSystemPrompt(info PromptInfo) string {
	var b strings.Builder

	// 1. Agent identity
	fmt.Fprintf(&b, "# Agent: %s\n", a.Spec.ID)
	if a.Spec.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", a.Spec.Role)
	}
	b.WriteString("\n")
	b.WriteString(a.Spec.Instructions)
	b.WriteString("\n\n")

	// 2. Current time
	now := time.Now()
	fmt.Fprintf(&b, "# Current Time\n%s\n\n", now.Format("2006-01-02 15:04:05 MST"))

	// 3. User context
	if info.UserName != "" {
		fmt.Fprintf(&b, "# User\nYou are talking to %s.\n\n", info.UserName)
	}

	// 4. Available tools
	if a.Tools.Len() > 0 {
		b.WriteString("# Available Tools\n")
		for _, d := range a.Tools.Definitions() {
			fmt.Fprintf(&b, "- **%s**: %s\n", d.Function.Name, d.Function.Description)
		}
		b.WriteString("\n")
	}

	// 5. New-session marker
	if info.ForceFullWorkflow {
		b.WriteString("# New Session\n")
		b.WriteString("The user's previous problem was resolved and a ticket was issued for it. ")
		b.WriteString("The current message is a NEW problem. Ignore any earlier problems still visible in the conversation: ")
		b.WriteString("run the full workflow from the beginning: understand the problem, search the knowledge base, ")
		b.WriteString("confirm with the user, classify the category, and only then create a ticket.\n\n")
	}

	// 6. Standing rules
	b.WriteString("# Rules\n")
	b.WriteString("- Only use tools when necessary to accomplish the task.\n")
	b.WriteString("- Answer in the language the user is writing in.\n")
	b.WriteString("- Never invent ticket IDs or category codes; they come from tool results only.\n")
	b.WriteString("- Be concise in responses.\n")

	return b.String()
}
