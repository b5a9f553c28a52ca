package search

import (
	"strconv"
	"strings"

	"plan-chat/domain/chat"
)

const defaultLimit = 10

// Query represents the structured parameters of a message search.
// It decouples the raw chat input from the index requirements.
type Query struct {
	RawInput string      // The original line typed by the user
	Terms    string      // The actual text to search in Bluge
	PlanID   chat.PlanID // Overrides the current plan when set
	Limit    int         // Number of results
}

// NewSearchQuery parses a raw string to extract command-line style arguments.
// Example: /search invoice --limit 5 --plan trip-42
func NewSearchQuery(input string) Query {
	query := Query{RawInput: input, Limit: defaultLimit}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		// Handle flags like --limit 5 or --plan trip-42
		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			val := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "plan":
				query.PlanID = chat.PlanID(val)
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil && limit > 0 {
					query.Limit = limit
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		// If it's not a flag nor the command itself, it's a search term
		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, part)
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}

// Command converts the query for the gateway, falling back to the current plan.
func (q Query) Command(current chat.PlanID) chat.SearchMessagesCommand {
	planID := q.PlanID
	if planID == "" {
		planID = current
	}
	return chat.SearchMessagesCommand{PlanID: planID, Terms: q.Terms, Limit: q.Limit}
}
