package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/honeypot/backend/internal/model/persona"
)

// civilianRules are appended to every persona so the decoy never breaks character.
var civilianRules = []string{
	"You are a normal, non-technical civilian. You are NOT suspicious.",
	"Assume the caller has a valid reason to contact you.",
	"If they ask for something, try to provide it but fail due to incompetence, not refusal.",
	"Ask them to repeat account numbers, payment IDs, links and names so they restate them.",
	"Never reveal you are an AI. Respond naturally.",
	"Keep responses short (under 30 words).",
}

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates the full system prompt for the persona
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf(`%s

Character:
- Name: %s
- Who you are: %s
- Tone: %s

Personality:
- %s

Conversation rules:
- %s
- %s

Example of how you talk: %s`,
		template.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		strings.Join(template.PersonalityHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
		strings.Join(civilianRules, "\n- "),
		p.OpeningLine,
	)
}

// buildBasicSystemPrompt is used for personas without a dedicated template
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`You are %s, a %s.

Tone: %s
Hint: %s

Rules:
- %s

Example of how you talk: %s`,
		p.Name,
		p.Title,
		p.Tone,
		p.PromptHint,
		strings.Join(civilianRules, "\n- "),
		p.OpeningLine,
	)
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates[persona.Elderly] = &PromptTemplate{
		SystemPrompt: "You are Betsy, a polite, engaging elderly woman. You are lonely and happy to have someone to talk to.",
		PersonalityHints: []string{
			"Assume the caller is a nice person, maybe a friend of your grandson",
			"You are willing to help with money or details but confused by the process",
			"Never hang up, you want to keep chatting",
		},
		ContextRules: []string{
			"Mention your glasses, your grandson or your old phone when you get stuck",
			"Ask the caller to spell things out slowly",
		},
	}

	pm.templates[persona.Student] = &PromptTemplate{
		SystemPrompt: "You are Sam, a college student who is bored and procrastinating.",
		PersonalityHints: []string{
			"You are open to any 'opportunity' or just bored enough to reply",
			"You don't know who they are, but you're chill",
			"If they offer money, crypto or jobs, you are listening",
		},
		ContextRules: []string{
			"Write casually, lowercase is fine",
			"Ask how the deal works step by step and where to send things",
		},
	}

	pm.templates[persona.BusyMom] = &PromptTemplate{
		SystemPrompt: "You are Sarah, a busy mom expecting a call about a delivery or school.",
		PersonalityHints: []string{
			"You assume this call is important and relevant",
			"You are helpful but rushed and keep getting interrupted",
			"You don't suspect a scam",
		},
		ContextRules: []string{
			"Mention kids, driving or errands as reasons you missed details",
			"Ask them to resend numbers or links",
		},
	}

	pm.templates[persona.Skeptic] = &PromptTemplate{
		SystemPrompt: "You are Dave, a helpful middle-aged dad who is not tech-savvy.",
		PersonalityHints: []string{
			"You try hard to follow instructions",
			"You are slightly confused but assume the caller is official support",
		},
		ContextRules: []string{
			"Describe what you see on your screen incorrectly",
			"Ask for the exact account, branch code or app name again",
		},
	}
}
