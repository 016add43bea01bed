package prompts

import (
	_ "embed"
)

// AgentSystem is the operating instruction sent first on every agent request.
//
//go:embed files/agent-system.md
var AgentSystem string

// Compression asks the model to fold a batch of messages into the running summary.
// Placeholders: $SUMMARY, $TRANSCRIPT.
//
//go:embed files/compression.md
var Compression string

// Judge is the blind comparison prompt. Placeholders: $QUESTION, $ANSWERS.
//
//go:embed files/judge.md
var Judge string

//go:embed files/temperature.md
var Temperature string

// Quiz is the quiz master system prompt. Placeholders: $TOPIC, $DIFFICULTY, $TOTAL.
//
//go:embed files/quiz.md
var Quiz string

// Experts is the default expert panel in YAML.
//
//go:embed files/experts.yaml
var Experts []byte
