package domain

// MessageKind names a Message variant. The names double as SSE event names.
type MessageKind string

const (
	KindStatus   MessageKind = "status"
	KindProgress MessageKind = "progress"
	KindClearUI  MessageKind = "clear"
	KindContent  MessageKind = "content"
	KindError    MessageKind = "error"
	KindComplete MessageKind = "complete"
)

// Message is a value sent from the analysis worker to the presentation loop.
// The set of variants is closed: Status, Progress, ClearUI, Content, Error
// and Complete.
type Message interface {
	Kind() MessageKind
	isMessage()
}

// Status replaces the visible status text.
type Status struct {
	Text string `json:"text"`
}

// Progress reports the fraction of a deep scan processed, in [0,1].
type Progress struct {
	Fraction float64 `json:"fraction"`
}

// ClearUI removes the loading elements before the streamed output starts.
type ClearUI struct{}

// Content carries one generated token.
type Content struct {
	Token string `json:"token"`
}

// Error carries a run failure. At most one is sent per run.
type Error struct {
	Err error `json:"-"`
}

// Complete is always the last message of a run. DocumentText is the text
// extracted during the run, for follow-up questions.
type Complete struct {
	DocumentText string `json:"-"`
}

func (Status) Kind() MessageKind   { return KindStatus }
func (Progress) Kind() MessageKind { return KindProgress }
func (ClearUI) Kind() MessageKind  { return KindClearUI }
func (Content) Kind() MessageKind  { return KindContent }
func (Error) Kind() MessageKind    { return KindError }
func (Complete) Kind() MessageKind { return KindComplete }

func (Status) isMessage()   {}
func (Progress) isMessage() {}
func (ClearUI) isMessage()  {}
func (Content) isMessage()  {}
func (Error) isMessage()    {}
func (Complete) isMessage() {}

// Text returns the banner text for the error.
func (e Error) Text() string {
	return UserMessage(e.Err)
}
