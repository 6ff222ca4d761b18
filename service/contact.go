package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ContactKind names the channel a contact address is delivered over
type ContactKind string

const (
	ContactKindEmail   ContactKind = "email"
	ContactKindDiscord ContactKind = "discord"
)

const discordContactPrefix = "discord:"

var contactValidator = validator.New()

// ParseContact classifies a contact address and returns the transport-level destination.
// Discord contacts are written as "discord:<user snowflake>"; everything else must be an e-mail address.
func ParseContact(address string) (ContactKind, string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", "", fmt.Errorf("contact address is empty")
	}

	if strings.HasPrefix(address, discordContactPrefix) {
		userID := strings.TrimPrefix(address, discordContactPrefix)
		if err := contactValidator.Var(userID, "required,numeric,min=15,max=20"); err != nil {
			return "", "", fmt.Errorf("invalid discord user id")
		}
		return ContactKindDiscord, userID, nil
	}

	if err := contactValidator.Var(address, "required,email,max=320"); err != nil {
		return "", "", fmt.Errorf("invalid email address")
	}
	return ContactKindEmail, address, nil
}
