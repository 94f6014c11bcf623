package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrSeedNotFound is returned when the seed file does not exist
var ErrSeedNotFound = errors.New("user seed file not found")

// LoadUserSeed loads the seed users from the YAML file at path
func LoadUserSeed(path string) (*domain.UserSeed, error) {
	if path == "" {
		return nil, fmt.Errorf("user seed path is not set")
	}

	yamlData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSeedNotFound, path)
		}
		return nil, fmt.Errorf("failed to read user seed file: %w", err)
	}

	var seed domain.UserSeed
	if err := yaml.Unmarshal(yamlData, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse user seed YAML: %w", err)
	}

	if err := validateUserSeed(&seed); err != nil {
		return nil, err
	}

	return &seed, nil
}

// validateUserSeed performs validation on the loaded seed users
func validateUserSeed(seed *domain.UserSeed) error {
	seen := make(map[string]bool, len(seed.Users))
	for i, u := range seed.Users {
		if u.Username == "" {
			return fmt.Errorf("seed user at index %d has no username", i)
		}
		if u.Password == "" {
			return fmt.Errorf("seed user '%s' has no password", u.Username)
		}
		if seen[u.Username] {
			return fmt.Errorf("seed user '%s' is defined more than once", u.Username)
		}
		seen[u.Username] = true
	}
	return nil
}
