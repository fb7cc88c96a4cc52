package llm

import (
	"fmt"

	"github.com/spherical/doc-assistant/internal/domain"
)

const (
	// DefaultInstruction is used when a request carries no custom instruction.
	DefaultInstruction = "Summarize this section concisely:"
	// SynthesisInstruction merges deep-scan partial summaries.
	SynthesisInstruction = "Synthesize these into a master report:"

	endMarker = "<|end|>"
)

// BuildPrompt wraps the instruction and text in the chat template of the
// local instruct model.
func BuildPrompt(req domain.GenerateRequest) string {
	instruction := req.Instruction
	if instruction == "" {
		instruction = DefaultInstruction
	}
	return fmt.Sprintf("<|user|>\n%s\n%s%s\n<|assistant|>\n", instruction, req.Text, endMarker)
}

// QuestionInstruction builds the instruction for a grounded follow-up question.
func QuestionInstruction(context, question string) string {
	return fmt.Sprintf("Context: %s\n\nQuestion: %s", context, question)
}
