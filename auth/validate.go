// Package auth validates the identity claims of the protocol: the relay's
// only authentication is username uniqueness, enforced by the registry.
package auth

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"chat-relay/errors"
)

var validate = validator.New()

type LoginRequest struct {
	Username string `validate:"required,min=1,max=32"`
}

type CreateGroupRequest struct {
	GroupName string `validate:"required,min=1,max=64"`
}

// ValidateUsername trims and checks a candidate username. Whitespace-only
// names count as empty. Uniqueness is the registry's job, not ours.
func ValidateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", errors.ErrEmptyUsername
	}
	if err := validate.Struct(LoginRequest{Username: username}); err != nil {
		return "", err
	}
	return username, nil
}

// ValidateGroupName trims and checks a candidate group name.
func ValidateGroupName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errors.ErrEmptyGroupName
	}
	if err := validate.Struct(CreateGroupRequest{GroupName: name}); err != nil {
		return "", err
	}
	return name, nil
}
