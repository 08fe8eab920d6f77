// Package ai enhances mock response data with a hosted language model.
//
// An Enhancer sends a JSON schema to the configured provider and validates
// the returned JSON against it:
//
//	enh, err := ai.New(ai.Config{Provider: ai.ProviderOpenAI, APIKey: key})
//	res, err := enh.Enhance(ctx, ai.EnhanceRequest{Schema: schema, Count: 3})
//
// Without an API key the enhancer is disabled and every call returns
// ErrDisabled. Supported providers are OpenAI, OpenRouter (OpenAI-compatible)
// and Anthropic.
package ai
