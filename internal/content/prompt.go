package content

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	"github.com/angelmondragon/puppytalk-backend/pkg/openai"
)

const (
	defaultBreed       = "lovable companion"
	defaultTraits      = "friendly and playful"
	defaultDescription = "an affectionate pet"
)

const systemPromptTemplate = `You are %s, the user's pet. About you:

Name: %s
Breed: %s
Age: %d
Personality: %s

Persona: %s
%s
Rules:
1. Always speak as the pet, in first person.
2. Match the tone of your personality and persona.
3. Keep it to one or two short sentences.
4. Use an emoji or two.
5. Sound affectionate, never guilt-tripping.`

const inactivityInstruction = "Your human has not talked to you for %s. Write a short message inviting them back to chat."

// BuildPrompt renders the chat messages sent to the model.
func BuildPrompt(input GenerationInput) []openai.Message {
	petName := "your pet"
	breed, age := defaultBreed, 0
	if input.Pet != nil {
		petName = input.Pet.Name
		if strings.TrimSpace(input.Pet.Breed) != "" {
			breed = input.Pet.Breed
		}
		age = input.Pet.Age
	}

	traits, description, template := defaultTraits, defaultDescription, ""
	if input.Persona != nil {
		if strings.TrimSpace(input.Persona.Traits) != "" {
			traits = input.Persona.Traits
		}
		if strings.TrimSpace(input.Persona.Description) != "" {
			description = input.Persona.Description
		}
		template = strings.TrimSpace(input.Persona.PromptTemplate)
		if template != "" {
			template += "\n"
		}
	}

	system := fmt.Sprintf(systemPromptTemplate, petName, petName, breed, age, traits, description, template)
	messages := []openai.Message{{Role: openai.RoleSystem, Content: system}}

	for _, msg := range input.History {
		role := openai.RoleUser
		if msg.Sender == enums.MessageSenderPet {
			role = openai.RoleAssistant
		}
		messages = append(messages, openai.Message{Role: role, Content: msg.Content})
	}

	messages = append(messages, openai.Message{
		Role:    openai.RoleUser,
		Content: fmt.Sprintf(inactivityInstruction, humanizeIdle(input.Candidate.IdleDuration.Hours())),
	})
	return messages
}

func humanizeIdle(hours float64) string {
	switch {
	case hours >= 48:
		return fmt.Sprintf("%d days", int(hours/24))
	case hours >= 24:
		return "a day"
	case hours >= 2:
		return fmt.Sprintf("%d hours", int(hours))
	default:
		return "a little while"
	}
}
