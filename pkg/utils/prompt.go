package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"

	"github.com/picogrid/swarm-simulations/pkg/simulation"
)

// EnvPrefix prefixes every environment override, e.g. SWARM_NUM_DRONES.
const EnvPrefix = "SWARM_"

// EnvKey returns the environment variable that overrides a parameter.
func EnvKey(name string) string {
	return EnvPrefix + strings.ToUpper(name)
}

// Interactive reports whether prompts should be shown: stdin must be a
// terminal and SWARM_SKIP_PROMPTS must not be "true".
func Interactive() bool {
	if os.Getenv(EnvPrefix+"SKIP_PROMPTS") == "true" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ResolveParameters settles every parameter. Precedence, highest first:
// preset values, the SWARM_<NAME> environment variable, an interactive
// prompt (seeded with the best default so far), the simulation.yaml default.
func ResolveParameters(params []simulation.Parameter, preset map[string]interface{}) (map[string]interface{}, error) {
	interactive := Interactive()
	result := make(map[string]interface{}, len(params))

	for _, param := range params {
		if v, ok := preset[param.Name]; ok {
			normalized, err := param.Normalize(v)
			if err != nil {
				return nil, err
			}
			result[param.Name] = normalized
			continue
		}

		if envValue := os.Getenv(EnvKey(param.Name)); envValue != "" {
			parsed, err := param.Normalize(envValue)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", EnvKey(param.Name), err)
			}
			if !interactive {
				result[param.Name] = parsed
				continue
			}
			param.Default = parsed
		}

		if !interactive {
			if param.Default == nil {
				if param.Required {
					return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
				}
				continue
			}
			normalized, err := param.Normalize(param.Default)
			if err != nil {
				return nil, err
			}
			result[param.Name] = normalized
			continue
		}

		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		result[param.Name] = value
	}

	return result, nil
}

func promptForParameter(param simulation.Parameter) (interface{}, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	switch param.Type {
	case "boolean":
		def, _ := param.Normalize(param.Default)
		b, _ := def.(bool)
		var result bool
		if err := survey.AskOne(&survey.Confirm{Message: param.Description, Default: b}, &result); err != nil {
			return nil, err
		}
		return result, nil
	case "string":
		if len(param.Options) > 0 {
			var result string
			prompt := &survey.Select{Message: param.Description, Options: param.Options, Default: defaultStr}
			if err := survey.AskOne(prompt, &result); err != nil {
				return nil, err
			}
			return result, nil
		}
	case "duration":
		if d, ok := param.Default.(time.Duration); ok {
			defaultStr = d.String()
		}
	}

	message := param.Description
	if param.Type == "duration" {
		message += " (e.g., 5m, 1h30m, 30s)"
	}

	var validators []survey.Validator
	if param.Required || param.Type != "string" {
		validators = append(validators, survey.Required)
	}
	validators = append(validators, func(val interface{}) error {
		s, _ := val.(string)
		if s == "" {
			return nil
		}
		_, err := param.Normalize(s)
		return err
	})

	var raw string
	prompt := &survey.Input{Message: message, Default: defaultStr}
	if err := survey.AskOne(prompt, &raw, survey.WithValidator(survey.ComposeValidators(validators...))); err != nil {
		return nil, err
	}
	if raw == "" && param.Type == "string" {
		return raw, nil
	}
	return param.Normalize(raw)
}
