package practice

// roundDoneMsg is sent when a practice round returns.
type roundDoneMsg struct {
	Err error
}

// translatedMsg carries the translation of one history message.
type translatedMsg struct {
	Index int
	Text  string
}
