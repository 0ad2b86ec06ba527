// Package agent provides the conversational ReAct engine.
//
// Contains aliases for the model types the engine consumes and produces,
// so most callers only need this package.
package agent

import "github.com/jesamkim/aws-strands-agents-chatbot/model"

// Result is an alias for model.Result, the outcome of one engine run.
type Result = model.Result

// StepRecord is an alias for model.StepRecord, one entry in a run's trace.
type StepRecord = model.StepRecord

// ConversationTurn is an alias for model.ConversationTurn, one message of
// session history.
type ConversationTurn = model.ConversationTurn
