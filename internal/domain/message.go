package domain

// MessageSpec is an outbound message description returned by actions. The
// engine and actions never send messages; the transport collaborator renders
// and delivers these specs in order.
type MessageSpec struct {
	Header   string        `json:"header,omitempty"`
	Body     string        `json:"body"`
	Footer   string        `json:"footer,omitempty"`
	Buttons  []Button      `json:"buttons,omitempty"`
	Sections []ListSection `json:"sections,omitempty"`
}

// Button is an interactive reply button. ID carries the event the reply
// should trigger.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListSection groups rows in a list message.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// ListRow is one selectable row in a list section.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Text returns a body-only message spec.
func Text(body string) MessageSpec {
	return MessageSpec{Body: body}
}
