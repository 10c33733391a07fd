package gateway

import "fmt"

// User-facing texts.
const (
	WelcomeText = "Hi! I'm AI News LDO, and I'll help you with your questions. " +
		"Write me anything and I'll do my best to answer."

	HelpText = "/start - Welcome message\n" +
		"/help - Show the list of commands\n" +
		"/change - Change the bot's personality\n" +
		"/current - Show the current personality"

	ChangePrompt           = "Choose the bot's personality:"
	ThinkingText           = "Thinking…"
	FailureText            = "Sorry, there was an error while processing your request."
	UnknownCommandText     = "Unknown command. Type /help for available commands."
	UnknownPersonalityText = "Unknown personality"
)

// confirmationText names the personality just selected.
func confirmationText(label string) string {
	return fmt.Sprintf("Now I'll be %s! 😄", label)
}

func currentText(label string) string {
	return fmt.Sprintf("Current personality: %s", label)
}
