package models

// Document is a raw candidate handed over by a document source: a mailbox attachment,
// a dropped file or an upload. Origin is informational only.
type Document struct {
	Filename string
	Data     []byte
	Origin   string
}
