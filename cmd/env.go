package cmd

import (
	"fmt"
	"os"
)

// checkRequiredEnv verifies the environment variables the AI provider
// needs. Returns a user-friendly error with setup instructions.
func checkRequiredEnv() error {
	if os.Getenv("OPENAI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "askdocs needs an OpenAI API key for embeddings and completions.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export OPENAI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://platform.openai.com/api-keys")

		return fmt.Errorf("OPENAI_API_KEY not set")
	}
	return nil
}
