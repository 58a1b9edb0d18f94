package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"uxcellence/models"
)

type roundsFile struct {
	Rounds []models.Round `yaml:"rounds"`
}

// DefaultRounds is the round set used when neither the store nor ROUNDS_FILE provides one.
func DefaultRounds() []models.Round {
	return []models.Round{
		{Number: 1, Name: "Style Battle", MaxTeams: 30, Description: "Test on HTML + CSS skills"},
		{Number: 2, Name: "Design Remix", MaxTeams: 20, Description: "Creative design twist challenge"},
		{Number: 3, Name: "UXcellence Grand Showdown", MaxTeams: 10, Description: "Final design presentation & justification"},
	}
}

func LoadRounds(path string) ([]models.Round, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rounds file: %w", err)
	}

	var file roundsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rounds file: %w", err)
	}

	if err := models.ValidateRounds(file.Rounds); err != nil {
		return nil, err
	}
	return file.Rounds, nil
}
