package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	policyFileReadErrorTemplateConstant    = "unable to read policy file: %w"
	policyFileParseErrorTemplateConstant   = "unable to parse policy file: %w"
	policyEntryVersionRequiredTemplateText = "policy entry %s requires a version"
)

// Configuration maps action types to the versions the organization standardizes on.
type Configuration struct {
	Tasks map[string]string `yaml:"tasks" json:"tasks" mapstructure:"tasks"`
}

// RequiredVersion returns the version required for the action type.
//
// Lookup tolerates case differences between pipeline declarations and policy
// entries.
func (configuration Configuration) RequiredVersion(actionType string) (string, bool) {
	if requiredVersion, entryExists := configuration.Tasks[actionType]; entryExists {
		return requiredVersion, true
	}
	for configuredType, requiredVersion := range configuration.Tasks {
		if strings.EqualFold(configuredType, actionType) {
			return requiredVersion, true
		}
	}
	return "", false
}

// Validate confirms every policy entry carries a usable required version.
func (configuration Configuration) Validate() error {
	for actionType, requiredVersion := range configuration.Tasks {
		if len(strings.TrimSpace(requiredVersion)) == 0 {
			return fmt.Errorf(policyEntryVersionRequiredTemplateText, actionType)
		}
	}
	return nil
}

// LoadConfigurationFromFile reads and validates a standalone policy document.
func LoadConfigurationFromFile(filePath string) (Configuration, error) {
	contentBytes, readError := os.ReadFile(filePath)
	if readError != nil {
		return Configuration{}, fmt.Errorf(policyFileReadErrorTemplateConstant, readError)
	}
	return ParseConfiguration(contentBytes)
}

// ParseConfiguration decodes a policy document, accepting both bare and wrapped layouts.
func ParseConfiguration(contentBytes []byte) (Configuration, error) {
	configuration := Configuration{}
	if unmarshalError := yaml.Unmarshal(contentBytes, &configuration); unmarshalError != nil {
		return Configuration{}, fmt.Errorf(policyFileParseErrorTemplateConstant, unmarshalError)
	}

	if len(configuration.Tasks) == 0 {
		wrapper := struct {
			Policy Configuration `yaml:"policy" json:"policy"`
		}{}
		if nestedError := yaml.Unmarshal(contentBytes, &wrapper); nestedError == nil && len(wrapper.Policy.Tasks) > 0 {
			configuration = wrapper.Policy
		}
	}

	if validationError := configuration.Validate(); validationError != nil {
		return Configuration{}, validationError
	}
	return configuration, nil
}
