package resolvers

var credentialVars = map[string][]string{
	ProviderGoogleGenAI: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":            {"OPENAI_API_KEY"},
	"anthropic":         {"ANTHROPIC_API_KEY"},
	"azure":             {"AZURE_OPENAI_API_KEY"},
	"mistral":           {"MISTRAL_API_KEY"},
	"cohere":            {"COHERE_API_KEY"},
	"groq":              {"GROQ_API_KEY"},
	"deepseek":          {"DEEPSEEK_API_KEY"},
	"openrouter":        {"OPENROUTER_API_KEY"},
}

// CredentialVars returns the environment variables holding the key for provider, and whether the key is mandatory.
func CredentialVars(provider string) (vars []string, required bool) {
	if vars, ok := credentialVars[provider]; ok {
		return vars, true
	}
	return []string{"OPENAI_API_KEY"}, false
}

func (r Resolver) credential(provider string) (string, error) {
	vars, required := CredentialVars(provider)
	for _, name := range vars {
		if v := r.env(name); v != "" {
			return v, nil
		}
	}
	if v := r.APIKeys[provider]; v != "" {
		return v, nil
	}
	if required {
		return "", wrap(&MissingCredentialError{
			Provider: provider,
			Vars:     vars,
		})
	}
	return "", nil
}
