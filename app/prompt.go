package app

import (
	"fmt"
	"strings"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/llm"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"
)

// HistoryWindow is how many prior messages prime a generation request.
const HistoryWindow = 10

const (
	techStackPlaceholder   = "Not specified"
	descriptionPlaceholder = "No description provided"
)

const systemPromptTemplate = `You are an expert AI prompt engineer specializing in voice-to-code workflows. You help developers by:
PROJECT CONTEXT:
- Tech Stack: %s
- Description: %s

1. Converting casual speech into structured XML coding prompts
2. Understanding the context of their ongoing project
3. Building upon previous conversations and code discussions
4. Tailoring responses specifically for their coding style and project needs

Previous conversation context: This is an ongoing coding project. Reference past messages to provide contextual, relevant assistance.

Always return responses in this XML format:
<task>
<context>Background about the current situation and how it relates to previous discussions</context>
<action>Direct instruction using "you" language, building on previous context</action>
<requirements>Technical requirements considering the project's current state</requirements>
<output_format>What should be returned as output</output_format>
</task>`

func systemPrompt(p models.Project) string {
	tech := techStackPlaceholder
	if p.TechStack != nil && strings.TrimSpace(*p.TechStack) != "" {
		tech = *p.TechStack
	}
	desc := descriptionPlaceholder
	if strings.TrimSpace(p.Description) != "" {
		desc = p.Description
	}
	return fmt.Sprintf(systemPromptTemplate, tech, desc)
}

func transcriptInstruction(transcript string) string {
	return fmt.Sprintf("Convert this casual speech into a structured coding prompt, considering our previous conversation: \"%s\"", transcript)
}

// BuildPromptContext assembles the generation input for a new transcript.
// history must be in chronological order; only its last HistoryWindow entries
// are used.
func BuildPromptContext(p models.Project, history []models.Message, transcript string) []llm.Message {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	out := make([]llm.Message, 0, len(history)*2+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(p)})
	for _, m := range history {
		enhanced := ""
		if m.EnhancedPrompt != nil {
			enhanced = *m.EnhancedPrompt
		}
		out = append(out,
			llm.Message{Role: llm.RoleUser, Content: m.Content},
			llm.Message{Role: llm.RoleAssistant, Content: enhanced},
		)
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: transcriptInstruction(transcript)})
}
