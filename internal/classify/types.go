package classify

import "time"

// Label is one of the six mutually exclusive thread categories.
// Exactly one label is assigned per thread per classification run.
type Label string

const (
	LabelToDo          Label = "to_do"
	LabelAwaitingReply Label = "awaiting_reply"
	LabelFYI           Label = "fyi"
	LabelDone          Label = "done"
	LabelSpam          Label = "spam"
	LabelHistory       Label = "history"
)

// Labels returns all six labels in a stable order.
func Labels() []Label {
	return []Label{LabelToDo, LabelAwaitingReply, LabelFYI, LabelDone, LabelSpam, LabelHistory}
}

// IsValid reports whether l is one of the six defined labels.
func (l Label) IsValid() bool {
	switch l {
	case LabelToDo, LabelAwaitingReply, LabelFYI, LabelDone, LabelSpam, LabelHistory:
		return true
	}
	return false
}

// Method records how a classification was produced.
type Method string

const (
	// MethodAutomaticAge marks threads classified as history by the age rule
	// without a model call.
	MethodAutomaticAge Method = "automatic-age"

	// MethodModel marks classifications produced by parsing a model response.
	MethodModel Method = "model-based"

	// MethodFallbackUnparseable marks results from the keyword-scan fallback
	// when the model response had no recognizable structure.
	MethodFallbackUnparseable Method = "fallback-unparseable"

	// MethodFallbackError marks results produced after a model call or
	// processing failure.
	MethodFallbackError Method = "fallback-error"
)

// Message is a single email as seen by the classification pipeline.
// Messages are owned by the caller and treated as read-only here.
type Message struct {
	ID       string
	ThreadID string
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	Body     string
	Date     time.Time
	LabelIDs []string
}

// Classification is the result of classifying one thread.
type Classification struct {
	ThreadID   string
	Label      Label
	Confidence float64
	Reasoning  string
	EmailCount int
	Method     Method
}
