package model

// TriggerEvent carries one raw trigger payload with source metadata.
// It is the transport contract between event sources and dispatch.
type TriggerEvent struct {
	Source string
	Body   string
}
